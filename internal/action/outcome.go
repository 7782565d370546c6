package action

// Result classifies an action outcome.
type Result int

const (
	// Success means the action was issued.
	Success Result = iota
	// PermissionRequired means the capability is missing and the
	// permission-request flow was started instead.
	PermissionRequired
	// Failed means the action was attempted and errored.
	Failed
)

// String returns the lower-case result name used in logs, history and metrics.
func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case PermissionRequired:
		return "permission_required"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one handler invocation.
type Outcome struct {
	Result Result
	// Reason is set for Failed outcomes.
	Reason string
}

// Succeeded returns a Success outcome.
func Succeeded() Outcome { return Outcome{Result: Success} }

// NeedsPermission returns a PermissionRequired outcome.
func NeedsPermission() Outcome { return Outcome{Result: PermissionRequired} }

// FailedWith returns a Failed outcome carrying err's message.
func FailedWith(err error) Outcome {
	return Outcome{Result: Failed, Reason: err.Error()}
}
