package invoke

import "errors"

// Configuration errors.
var (
	// ErrInvalidReference is returned when the handler reference is missing or
	// does not split into exactly three non-empty "::"-separated segments.
	ErrInvalidReference = errors.New("invoke: invalid handler reference")
)

// Resolution errors.
var (
	ErrTypeNotFound     = errors.New("invoke: handler type not found")
	ErrInstanceCreation = errors.New("invoke: handler instance could not be created")
	ErrMethodNotFound   = errors.New("invoke: handler method not found")
)

// Dispatch errors.
var (
	ErrNilPayload        = errors.New("invoke: input cannot be null")
	ErrDecode            = errors.New("invoke: could not decode input")
	ErrConversion        = errors.New("invoke: could not convert input to target type")
	ErrUnsupportedArity  = errors.New("invoke: unsupported parameter count")
	ErrMissingContext    = errors.New("invoke: two-parameter handler must take a context.Context")
	ErrUnsupportedResult = errors.New("invoke: unsupported return signature")
	ErrNilResult         = errors.New("invoke: handler returned null unexpectedly")
	ErrEncode            = errors.New("invoke: could not encode result")
)

// IsClientError reports whether err was caused by the payload rather than by
// configuration, resolution or the handler itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNilPayload) ||
		errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrConversion)
}
