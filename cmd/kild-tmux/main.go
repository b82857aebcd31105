// Command kild-tmux is the binary symlinked as ~/.kild/bin/tmux (see
// kildpaths.Paths.TmuxShimBinary). It is never invoked by a human;
// agents shelling out to `tmux ...` get this instead, because
// internal/spawn.baseEnv prepends ~/.kild/bin ahead of the real tmux on
// PATH.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kild-dev/kild/internal/daemon"
	"github.com/kild-dev/kild/internal/kildpaths"
	"github.com/kild-dev/kild/internal/tmuxshim"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	shimSession := os.Getenv("KILD_SHIM_SESSION")
	if shimSession == "" {
		fmt.Fprintln(os.Stderr, "tmux: KILD_SHIM_SESSION is not set")
		return 0
	}

	cmd, err := tmuxshim.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "tmux:", err)
		return 0
	}

	paths, err := kildpaths.Resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tmux:", err)
		return 0
	}

	client, err := daemon.Dial(paths.SocketPath())
	if err != nil {
		log.Warn("tmux shim: daemon unreachable", "error", err)
		return 0
	}
	defer client.Close()

	rows, cols := 24, 80
	if r := os.Getenv("LINES"); r != "" {
		fmt.Sscanf(r, "%d", &rows)
	}
	if c := os.Getenv("COLUMNS"); c != "" {
		fmt.Sscanf(c, "%d", &cols)
	}

	out, code := tmuxshim.Execute(cmd, client, shimSession, envMap(), rows, cols, log)
	if out != "" {
		fmt.Println(out)
	}
	return code
}

func envMap() map[string]string {
	m := make(map[string]string, len(os.Environ()))
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				m[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return m
}
