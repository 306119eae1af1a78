package timer

import "errors"

var (
	// ErrNotFound means the task does not exist or belongs to someone else.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the task's current status does not permit the
	// requested transition.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidPlan means a planning batch failed validation.
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrUnauthenticated means no caller identity was supplied.
	ErrUnauthenticated = errors.New("unauthenticated")
)

var kinds = []struct {
	name string
	err  error
}{
	{"not_found", ErrNotFound},
	{"invalid_state", ErrInvalidState},
	{"invalid_plan", ErrInvalidPlan},
	{"unauthenticated", ErrUnauthenticated},
}

// Kind returns the wire label for err, or "internal" if err is not one of
// the engine's sentinel errors.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}

// ErrorForKind maps a wire label back to its sentinel error. It returns
// nil for unknown labels.
func ErrorForKind(kind string) error {
	for _, k := range kinds {
		if k.name == kind {
			return k.err
		}
	}
	return nil
}
