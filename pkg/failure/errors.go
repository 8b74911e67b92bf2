package failure

type Severity int

// caller control flow
const (
	SeverityFatal Severity = iota
	SeverityRecoverable
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityRecoverable:
		return "recoverable"
	default:
		return "unknown"
	}
}

// ClassifiedError is returned by every pipeline stage. Severity tells the
// caller whether the failure is worth another attempt; it says nothing about
// how the failure should be logged.
type ClassifiedError interface {
	error
	Severity() Severity
}
