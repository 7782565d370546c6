// Package action implements the display actions triggered by broker commands.
//
// Two handlers exist:
//   - WakeDisplay asks the overlay collaborator to wake the display and
//     optionally open a URL. It is fire-and-forget and always succeeds.
//   - LockDisplay locks the session when the lock capability is held and
//     otherwise starts the permission-request flow.
//
// Handlers never return errors. Every invocation yields an Outcome that is
// also sent to the status reporter.
package action
