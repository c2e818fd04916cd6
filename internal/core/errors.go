package core

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindStoreUnavailable ErrorKind = "store_unavailable"
	KindClaimConflict    ErrorKind = "claim_conflict"
	KindRender           ErrorKind = "render"
	KindTransport        ErrorKind = "transport"
)

var (
	ErrStoreUnavailable = errors.New("job store unavailable")
	ErrClaimConflict    = errors.New("job already claimed")
	ErrRender           = errors.New("render failed")
	ErrTransport        = errors.New("print transport failed")
	ErrJobNotFound      = errors.New("job not found")
	ErrConnectionFailed = errors.New("connection failed")
)

// RenderError reports a payload that could not be laid out.
type RenderError struct {
	Type JobType
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Type, e.Err)
}

func (e *RenderError) Unwrap() []error {
	return []error{ErrRender, e.Err}
}

// TransportError carries the spooler's or device's own diagnostic text.
type TransportError struct {
	Diagnostic string
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v: %s", ErrTransport, e.Diagnostic)
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

func storeError(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrClaimConflict) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// KindOf classifies err. It returns "" for errors outside the taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrClaimConflict):
		return KindClaimConflict
	case errors.Is(err, ErrRender):
		return KindRender
	case errors.Is(err, ErrTransport):
		return KindTransport
	}
	return ""
}
