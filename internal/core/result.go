package core

// Status tags the outcome of a port call.
type Status int

const (
	StatusOK Status = iota
	StatusDegraded
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDegraded:
		return "degraded"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Result carries a port outcome. Degraded results still hold a usable Value
// (the fallback); Fatal results hold Err and no value.
type Result[T any] struct {
	Value  T
	Status Status
	Reason string
	Err    error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: StatusOK}
}

func Degraded[T any](v T, reason string) Result[T] {
	return Result[T]{Value: v, Status: StatusDegraded, Reason: reason}
}

func Fatal[T any](err error) Result[T] {
	return Result[T]{Status: StatusFatal, Err: err}
}
