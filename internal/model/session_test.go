package model

import (
	"reflect"
	"testing"
)

func TestRotateAgentSessionID(t *testing.T) {
	s := &Session{}
	s.RotateAgentSessionID("tok-a")
	if s.AgentSessionID != "tok-a" || s.AgentSessionIDHistory != nil {
		t.Fatalf("first rotation unexpected: %+v", s)
	}

	s.RotateAgentSessionID("tok-b")
	if s.AgentSessionID != "tok-b" || !reflect.DeepEqual(s.AgentSessionIDHistory, []string{"tok-a"}) {
		t.Fatalf("second rotation unexpected: %+v", s)
	}

	// Rotating to the same token again must not duplicate history.
	s.RotateAgentSessionID("tok-b")
	if !reflect.DeepEqual(s.AgentSessionIDHistory, []string{"tok-a"}) {
		t.Fatalf("rotating to same token duplicated history: %+v", s.AgentSessionIDHistory)
	}
}

func TestHasAgentsAndLastAgent(t *testing.T) {
	s := &Session{}
	if s.HasAgents() || s.LastAgent() != nil {
		t.Fatalf("empty session should report no agents")
	}
	s.Agents = append(s.Agents, AgentProcess{SpawnID: "a_0"}, AgentProcess{SpawnID: "a_1"})
	if !s.HasAgents() {
		t.Fatalf("expected HasAgents true")
	}
	if s.LastAgent().SpawnID != "a_1" {
		t.Fatalf("LastAgent = %+v", s.LastAgent())
	}
}
