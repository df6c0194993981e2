package mkv

import "errors"

// ErrUnexpectedElement is returned when the demuxer finds an element it did
// not expect at a point in the tree where only a specific element (or one
// of a specific set) is structurally valid.
var ErrUnexpectedElement = errors.New("mkv: unexpected element")

// ErrMissingRequiredElement is returned when a master element closes
// without one of its mandatory children having appeared.
var ErrMissingRequiredElement = errors.New("mkv: missing required element")

func unexpected(detail string) error {
	return &wrappedErr{sentinel: ErrUnexpectedElement, detail: detail}
}

func missing(detail string) error {
	return &wrappedErr{sentinel: ErrMissingRequiredElement, detail: detail}
}
