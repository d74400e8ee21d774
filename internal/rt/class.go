// internal/rt/class.go

package rt

import "fmt"

// TaskClass declares what a deadline or budget miss means for a task.
// Only the kernel interprets it.
type TaskClass int32

const (
	ClassHard TaskClass = iota
	ClassSoft
	ClassBestEffort
)

func (c TaskClass) String() string {
	switch c {
	case ClassHard:
		return "hrt"
	case ClassSoft:
		return "srt"
	case ClassBestEffort:
		return "be"
	default:
		return "Unknown"
	}
}

// Valid reports whether c is a declared class.
func (c TaskClass) Valid() bool { return c >= ClassHard && c <= ClassBestEffort }

// ParseClass accepts "hrt", "srt" and "be". Anything else is an error
// rather than a guessed default.
func ParseClass(s string) (TaskClass, error) {
	switch s {
	case "hrt":
		return ClassHard, nil
	case "srt":
		return ClassSoft, nil
	case "be":
		return ClassBestEffort, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownClass, s)
}
