package invoke

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
)

// Codec converts payload bytes to values of a runtime-chosen type and back.
type Codec interface {
	// Decode reads one value of type typ from r.
	Decode(r io.Reader, typ reflect.Type) (any, error)
	// Encode serializes v.
	Encode(v any) ([]byte, error)
}

// JSONCodec is the default Codec, backed by sonic in std-compatible mode.
type JSONCodec struct{}

// Decode implements Codec.
func (JSONCodec) Decode(r io.Reader, typ reflect.Type) (any, error) {
	ptr := reflect.New(typ)
	if err := sonic.ConfigStd.NewDecoder(r).Decode(ptr.Interface()); err != nil {
		return nil, err
	}

	return ptr.Elem().Interface(), nil
}

// Encode implements Codec.
func (JSONCodec) Encode(v any) ([]byte, error) {
	return sonic.ConfigStd.Marshal(v)
}

// YAMLCodec decodes and encodes YAML documents with goccy/go-yaml.
type YAMLCodec struct{}

// Decode implements Codec.
func (YAMLCodec) Decode(r io.Reader, typ reflect.Type) (any, error) {
	ptr := reflect.New(typ)
	if err := yaml.NewDecoder(r).Decode(ptr.Interface()); err != nil {
		return nil, err
	}

	return ptr.Elem().Interface(), nil
}

// Encode implements Codec.
func (YAMLCodec) Encode(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

// CodecByName returns the codec for "json" (or "") and "yaml".
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONCodec{}, nil
	case "yaml", "yml":
		return YAMLCodec{}, nil
	default:
		return nil, fmt.Errorf("invoke: unknown codec %q", name)
	}
}

// Decode rewinds payload to its start and decodes it into typ.
// Codec failures are wrapped with [ErrDecode].
func Decode(payload io.ReadSeeker, codec Codec, typ reflect.Type) (any, error) {
	if _, err := payload.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: rewind payload: %w", ErrDecode, err)
	}

	v, err := codec.Decode(payload, typ)
	if err != nil {
		return nil, fmt.Errorf("%w into %s: %w", ErrDecode, typ, err)
	}

	return v, nil
}
