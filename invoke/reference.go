package invoke

import (
	"fmt"
	"os"
	"strings"
)

// ReferenceDelimiter separates the module, type and method segments.
const ReferenceDelimiter = "::"

// EnvHandler is the environment variable read by [EnvReference].
const EnvHandler = "OTXFN_HANDLER"

// Reference identifies a handler method: "<module>::<type>::<method>".
type Reference struct {
	Module string
	Type   string
	Method string
}

// ParseReference parses s into a Reference.
// Anything other than exactly three non-empty segments is an [ErrInvalidReference].
func ParseReference(s string) (Reference, error) {
	parts := strings.Split(s, ReferenceDelimiter)
	if len(parts) != 3 {
		return Reference{}, fmt.Errorf("%w: %q has %d segments, want 3", ErrInvalidReference, s, len(parts))
	}

	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			return Reference{}, fmt.Errorf("%w: %q has empty segment %d", ErrInvalidReference, s, i+1)
		}
	}

	return Reference{Module: parts[0], Type: parts[1], Method: parts[2]}, nil
}

// String returns the reference in its configuration form.
func (r Reference) String() string {
	return r.Module + ReferenceDelimiter + r.Type + ReferenceDelimiter + r.Method
}

// ReferenceSource yields the handler reference for one invocation.
type ReferenceSource func() (string, error)

// EnvReference reads the reference from the OTXFN_HANDLER environment variable
// each time it is called.
func EnvReference() (string, error) {
	return LookupReference(os.LookupEnv, EnvHandler)()
}

// LookupReference builds a ReferenceSource over a key/value lookup function.
func LookupReference(lookup func(string) (string, bool), key string) ReferenceSource {
	return func() (string, error) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return "", fmt.Errorf("%w: %s is not set", ErrInvalidReference, key)
		}

		return v, nil
	}
}

// StaticReference always yields ref.
func StaticReference(ref string) ReferenceSource {
	return func() (string, error) { return ref, nil }
}
