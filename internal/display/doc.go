// Package display implements the wake and lock collaborators for a Linux
// desktop session by running configured external commands.
//
// A wake runs the wake command (DPMS on by default), holds an idle inhibitor
// for a few seconds so the screen does not immediately blank again, and opens
// the configured URL in the browser. Each wake is independent and tears
// itself down.
//
// Locking uses the configured lock command. The lock capability is held when
// that command resolves to an executable file. Without it, the optional
// permission command is run so the user can grant access out of band.
package display
