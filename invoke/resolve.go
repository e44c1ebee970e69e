package invoke

import (
	"context"
	"fmt"
	"reflect"
)

// Shape is the parameter shape of a resolved handler method.
type Shape int

const (
	// ShapeUnsupported marks a parameter list the adapter will not call.
	ShapeUnsupported Shape = iota
	// ShapeNoArgs is func().
	ShapeNoArgs
	// ShapePayload is func(T).
	ShapePayload
	// ShapeContextPayload is func(context.Context, T) or func(T, context.Context).
	ShapeContextPayload
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeNoArgs:
		return "none"
	case ShapePayload:
		return "payload"
	case ShapeContextPayload:
		return "context+payload"
	default:
		return "unsupported"
	}
}

// ReturnKind classifies a handler's declared result, ignoring a trailing error.
type ReturnKind int

const (
	// ReturnsNone declares no result value.
	ReturnsNone ReturnKind = iota
	// ReturnsValue declares an immediate value.
	ReturnsValue
	// ReturnsCompletion declares a Deferred without payload.
	ReturnsCompletion
	// ReturnsDeferredValue declares a ValueDeferred.
	ReturnsDeferredValue
)

// ReturnShape describes the declared results of a handler method.
type ReturnShape struct {
	Kind     ReturnKind
	HasError bool
	// Type is the declared value type; nil for ReturnsNone.
	Type reflect.Type
}

var (
	contextType       = reflect.TypeFor[context.Context]()
	errorType         = reflect.TypeFor[error]()
	deferredType      = reflect.TypeFor[Deferred]()
	valueDeferredType = reflect.TypeFor[ValueDeferred]()
)

// Resolved is a handler method bound to a fresh instance.
type Resolved struct {
	Ref      Reference
	Instance any
	Method   reflect.Value
	Shape    Shape
	Returns  ReturnShape

	// payloadType is the decode target; nil for ShapeNoArgs and ShapeUnsupported.
	payloadType reflect.Type
	// arity is the declared parameter count.
	arity int
	// ctxIndex is the position of the context.Context parameter of a
	// ShapeContextPayload method.
	ctxIndex int
}

// PayloadType returns the type the payload is decoded into, or nil when the
// handler takes no payload.
func (h *Resolved) PayloadType() reflect.Type { return h.payloadType }

// Arity returns the declared parameter count.
func (h *Resolved) Arity() int { return h.arity }

// Resolver binds references to handler methods using a Registry.
type Resolver struct {
	registry *Registry
}

// NewResolver returns a Resolver over r. A nil r means [DefaultRegistry].
func NewResolver(r *Registry) *Resolver {
	if r == nil {
		r = DefaultRegistry
	}

	return &Resolver{registry: r}
}

// Resolve parses ref and binds it: module/type → instance → method.
// Each failing step returns its own error kind; there is no fallback search.
func (r *Resolver) Resolve(ref string) (*Resolved, error) {
	parsed, err := ParseReference(ref)
	if err != nil {
		return nil, err
	}

	return r.ResolveReference(parsed)
}

// ResolveReference binds an already parsed reference.
func (r *Resolver) ResolveReference(ref Reference) (*Resolved, error) {
	factory, ok := r.registry.Lookup(ref.Module, ref.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s%s%s", ErrTypeNotFound, ref.Module, ReferenceDelimiter, ref.Type)
	}

	inst := factory()
	if isNilInstance(inst) {
		return nil, fmt.Errorf("%w: %s", ErrInstanceCreation, ref.Type)
	}

	method := reflect.ValueOf(inst).MethodByName(ref.Method)
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: %s.%s", ErrMethodNotFound, ref.Type, ref.Method)
	}

	returns, err := classifyReturns(method.Type())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}

	h := &Resolved{
		Ref:      ref,
		Instance: inst,
		Method:   method,
		Returns:  returns,
		arity:    method.Type().NumIn(),
	}
	h.Shape, h.payloadType, h.ctxIndex = classifyParams(method.Type())

	return h, nil
}

func isNilInstance(inst any) bool {
	if inst == nil {
		return true
	}
	v := reflect.ValueOf(inst)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

// classifyParams maps a method's parameter list to a Shape, the payload type
// and the context position. A two-parameter method takes one context.Context,
// in either position, and decodes the payload into the other.
func classifyParams(ft reflect.Type) (shape Shape, payload reflect.Type, ctxIndex int) {
	if ft.IsVariadic() {
		return ShapeUnsupported, nil, 0
	}

	switch ft.NumIn() {
	case 0:
		return ShapeNoArgs, nil, 0
	case 1:
		return ShapePayload, ft.In(0), 0
	case 2:
		switch {
		case ft.In(0) == contextType:
			return ShapeContextPayload, ft.In(1), 0
		case ft.In(1) == contextType:
			return ShapeContextPayload, ft.In(0), 1
		default:
			return ShapeUnsupported, nil, 0
		}
	default:
		return ShapeUnsupported, nil, 0
	}
}

// classifyReturns accepts (), (error), (V), (V, error) where V may be a Deferred.
func classifyReturns(ft reflect.Type) (ReturnShape, error) {
	var rs ReturnShape

	n := ft.NumOut()
	if n > 0 && ft.Out(n-1) == errorType {
		rs.HasError = true
		n--
	}

	switch n {
	case 0:
		rs.Kind = ReturnsNone
	case 1:
		rs.Type = ft.Out(0)
		switch {
		case rs.Type.Implements(valueDeferredType):
			rs.Kind = ReturnsDeferredValue
		case rs.Type.Implements(deferredType):
			rs.Kind = ReturnsCompletion
		default:
			rs.Kind = ReturnsValue
		}
	default:
		return ReturnShape{}, fmt.Errorf("%w: %s", ErrUnsupportedResult, ft)
	}

	return rs, nil
}
