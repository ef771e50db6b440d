package vfs

import "errors"

// ErrorCode is the stable filesystem error enumeration. The guest's
// standard-library emulation matches on these codes, so they are
// identical in both execution modes and across storage backends.
type ErrorCode uint8

const (
	ErrorAccess ErrorCode = iota
	ErrorWouldBlock
	ErrorBadDescriptor
	ErrorBusy
	ErrorExist
	ErrorInvalid
	ErrorIo
	ErrorIsDirectory
	ErrorLoop
	ErrorNameTooLong
	ErrorNoEntry
	ErrorInsufficientSpace
	ErrorNotDirectory
	ErrorNotEmpty
	ErrorUnsupported
	ErrorOverflow
	ErrorNotPermitted
	ErrorReadOnly
	ErrorInvalidSeek
	ErrorCrossDevice
)

var errorCodeNames = map[ErrorCode]string{
	ErrorAccess:            "access",
	ErrorWouldBlock:        "would-block",
	ErrorBadDescriptor:     "bad-descriptor",
	ErrorBusy:              "busy",
	ErrorExist:             "exist",
	ErrorInvalid:           "invalid",
	ErrorIo:                "io",
	ErrorIsDirectory:       "is-directory",
	ErrorLoop:              "loop",
	ErrorNameTooLong:       "name-too-long",
	ErrorNoEntry:           "no-entry",
	ErrorInsufficientSpace: "insufficient-space",
	ErrorNotDirectory:      "not-directory",
	ErrorNotEmpty:          "not-empty",
	ErrorUnsupported:       "unsupported",
	ErrorOverflow:          "overflow",
	ErrorNotPermitted:      "not-permitted",
	ErrorReadOnly:          "read-only",
	ErrorInvalidSeek:       "invalid-seek",
	ErrorCrossDevice:       "cross-device",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "io"
}

// Error is the typed filesystem failure carried across the capability
// boundary.
type Error struct {
	Code ErrorCode
	Path string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return "vfs: " + e.Code.String() + ": " + e.Path
	}
	return "vfs: " + e.Code.String()
}

// Is matches errors with the same code, ignoring path.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Err builds a coded error. Backends use this so every store surfaces
// the same code for the same condition.
func Err(code ErrorCode, path string) *Error {
	return &Error{Code: code, Path: path}
}

// CodeOf extracts the stable code from any error, defaulting to io.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrorIo
}
