// Package process runs the external commands that wake, lock and notify.
//
// Two shapes of subprocess are supported:
//   - Runner: one-shot commands (xset, loginctl, notify-send, xdg-open),
//     either waited on with a timeout or started and reaped in the background.
//   - Session: a long-running command held for a bounded time, such as an
//     idle inhibitor that keeps the display awake after a wake command.
//     Stopping a session signals its whole process group with SIGTERM and
//     escalates to SIGKILL after a grace period.
//
// Output from every subprocess is captured line by line into the logger at
// debug level.
//
// Example usage:
//
//	runner := process.NewRunner(10 * time.Second)
//	if err := runner.Run(ctx, "lock", []string{"loginctl", "lock-session"}); err != nil {
//	    log.Warn("lock failed", "error", err)
//	}
//
//	s := process.NewSession(process.SessionConfig{
//	    Name: "keep-awake",
//	    Argv: []string{"systemd-inhibit", "--what=idle", "sleep", "infinity"},
//	})
//	if err := s.Start(ctx); err == nil {
//	    time.AfterFunc(3*time.Second, func() { s.Stop() })
//	}
package process
