// Package apperr classifies domain errors so transports can map them to a
// status without knowing every sentinel.
package apperr

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrBadRequest = errors.New("bad request")
	ErrConflict   = errors.New("conflict")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func NotFound(msg string) error   { return &kindError{kind: ErrNotFound, msg: msg} }
func Forbidden(msg string) error  { return &kindError{kind: ErrForbidden, msg: msg} }
func BadRequest(msg string) error { return &kindError{kind: ErrBadRequest, msg: msg} }
func Conflict(msg string) error   { return &kindError{kind: ErrConflict, msg: msg} }

// Kind returns the kind sentinel err belongs to, or nil for unclassified errors.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrForbidden, ErrBadRequest, ErrConflict} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
