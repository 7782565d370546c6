// Package command maps inbound broker payloads to display actions.
//
// The vocabulary is closed and case-insensitive:
//
//	"on"  → Wake
//	"off" → Lock
//
// Anything else resolves to Unknown, is logged and recorded, and triggers no
// action. The dispatcher keeps no state between messages; ordering and
// duplicate handling are left to the transport (QoS 0).
package command
