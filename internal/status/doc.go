// Package status surfaces human-readable service state.
//
// Every state transition of the connection manager and every action outcome
// is passed to a Reporter as a short sentence. Reporters fan out to the log,
// to desktop notifications and, when a status topic is configured, back to
// the broker. A Reporter must return promptly; slow sinks do their work in
// a goroutine.
package status
