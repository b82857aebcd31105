package lifecycle

import (
	"github.com/kild-dev/kild/internal/config"
	"github.com/kild-dev/kild/internal/model"
)

// allocatePorts picks the next unused contiguous block of
// cfg.PortRangeSize ports starting at cfg.PortRangeBase, skipping any
// block already claimed by an existing session. Purely advisory: never
// enforced, only recorded.
func allocatePorts(existing []*model.Session, cfg *config.Config) model.PortRange {
	taken := make(map[int]bool, len(existing))
	for _, s := range existing {
		for p := s.Ports.Start; p <= s.Ports.End; p++ {
			taken[p] = true
		}
	}

	start := cfg.PortRangeBase
	size := cfg.PortRangeSize
	if size <= 0 {
		size = 1
	}

	for {
		collision := false
		for p := start; p < start+size; p++ {
			if taken[p] {
				collision = true
				break
			}
		}
		if !collision {
			return model.PortRange{Start: start, End: start + size - 1}
		}
		start += size
	}
}
