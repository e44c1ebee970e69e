package otxfn

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrInstrumentationNotFound is returned when no SDK tracer provider is
	// installed: only the API default or a no-op provider is present.
	ErrInstrumentationNotFound = errors.New("otxfn: tracing instrumentation not initialized")
	// ErrExportHandleNotFound is returned when the installed provider cannot
	// flush its spans.
	ErrExportHandleNotFound = errors.New("otxfn: tracer provider exposes no flush handle")
	// ErrExportHandleNil is returned when the installed provider is a nil value.
	ErrExportHandleNil = errors.New("otxfn: export handle is nil")
)

// ExportHandle forces pending spans out to the exporter. The SDK
// TracerProvider implements it.
type ExportHandle interface {
	ForceFlush(ctx context.Context) error
}

// apiPackages host the providers installed when the SDK is not: the global
// delegate and the no-op implementations.
var apiPackages = []string{
	"go.opentelemetry.io/otel/internal/global",
	"go.opentelemetry.io/otel/trace",
}

// HandleLocator finds the export handle behind a tracer provider source.
// The lookup runs at most once; its outcome, success or failure, is kept.
type HandleLocator struct {
	source func() trace.TracerProvider
	get    func() (ExportHandle, error)
}

// NewHandleLocator returns a locator reading providers from source.
func NewHandleLocator(source func() trace.TracerProvider) *HandleLocator {
	l := &HandleLocator{source: source}
	l.get = sync.OnceValues(l.locate)

	return l
}

// Get returns the located handle, locating it on the first call.
func (l *HandleLocator) Get() (ExportHandle, error) {
	return l.get()
}

func (l *HandleLocator) locate() (ExportHandle, error) {
	tp := l.source()
	if tp == nil {
		return nil, ErrInstrumentationNotFound
	}

	t := reflect.TypeOf(tp)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if isAPIPackage(t.PkgPath()) {
		return nil, ErrInstrumentationNotFound
	}

	h, ok := tp.(ExportHandle)
	if !ok {
		return nil, ErrExportHandleNotFound
	}

	if v := reflect.ValueOf(tp); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, ErrExportHandleNil
	}

	return h, nil
}

func isAPIPackage(pkg string) bool {
	for _, p := range apiPackages {
		if pkg == p || strings.HasPrefix(pkg, p+"/") {
			return true
		}
	}

	return false
}

var defaultLocator = NewHandleLocator(otel.GetTracerProvider)

// GetExportHandle returns the process-wide export handle: the tracer
// provider installed by [NewTracerProvider] or [Setup]. The lookup happens
// once per process, so telemetry must be set up before the first call.
func GetExportHandle() (ExportHandle, error) {
	return defaultLocator.Get()
}

// MustExportHandle is GetExportHandle for startup code; it panics when no
// handle can be located.
func MustExportHandle() ExportHandle {
	h, err := GetExportHandle()
	if err != nil {
		panic(err)
	}

	return h
}
