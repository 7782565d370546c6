// Package history records dispatched commands and connection state changes
// in SQLite so that `mqttwaker --history` can show what the daemon did.
package history
