package daemon

import "errors"

// ErrAlreadyRunning is returned by Server.Listen when another daemon
// process already holds the single-instance lock. Callers use this to
// decide between "reuse the running daemon" and "report a real error".
var ErrAlreadyRunning = errors.New("kild daemon already running")
