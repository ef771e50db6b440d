package registry

import "fmt"

// NotFoundError reports a handle that was never registered or has
// already been dropped. Guest cleanup may legitimately race teardown,
// so callers treat it as a recoverable condition, never a crash.
type NotFoundError struct {
	Handle Handle
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("registry: handle %d not found", e.Handle)
}

// Is matches any NotFoundError regardless of handle.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// TypeMismatchError reports a handle used with the wrong resource type.
type TypeMismatchError struct {
	Handle Handle
	Want   TypeID
	Got    TypeID
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("registry: handle %d has type %d, want %d", e.Handle, e.Got, e.Want)
}

// Is matches any TypeMismatchError regardless of handle.
func (e *TypeMismatchError) Is(target error) bool {
	_, ok := target.(*TypeMismatchError)
	return ok
}
