package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// NewCodec returns the codec registered under name.
func NewCodec[T any](name string) (Codec[T], error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec[T]{}, nil
	case CodecMsgpack:
		return MsgpackCodec[T]{}, nil
	default:
		return nil, fmt.Errorf("cache: unknown codec %q", name)
	}
}

// JSONCodec stores values as UTF-8 JSON laid out exactly like Python's
// json.dumps with default arguments: ", " and ": " separators and every
// character outside printable ASCII escaped as \uXXXX. Entries written by
// this codec are byte-identical to the ones written by the Python service
// sharing the same Redis database.
//
// Struct fields are emitted in declaration order, so the Go type must
// declare them in the order the Python side builds its dicts.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Name() string { return CodecJSON }

func (JSONCodec[T]) Encode(value T) ([]byte, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		// json.dumps([]) and not null: a stored null reads back as a miss on the Python side.
		return []byte("[]"), nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}

	return pythonLayout(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var value T

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return value, errors.New("stored value is null")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&value); err != nil {
		var zero T
		return zero, err
	}
	if _, err := dec.Token(); err != io.EOF {
		var zero T
		return zero, errors.New("trailing data after stored value")
	}
	if err := checkShape(data, reflect.TypeOf(value)); err != nil {
		var zero T
		return zero, err
	}

	return value, nil
}

// checkShape rejects documents that decode into t only by leaving fields at
// their zero value: missing keys, null fields and null elements. Fields
// tagged omitempty may be absent.
func checkShape(data []byte, t reflect.Type) error {
	if t == nil {
		return nil
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return err
	}
	return shapeOf(tree, t, "$")
}

func shapeOf(node any, t reflect.Type, path string) error {
	if node == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map:
			return nil
		}
		return fmt.Errorf("%s: null where %s expected", path, t)
	}

	switch t.Kind() {
	case reflect.Pointer:
		return shapeOf(node, t.Elem(), path)
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		items, ok := node.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array", path)
		}
		for i, item := range items {
			if err := shapeOf(item, t.Elem(), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		obj, ok := node.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object", path)
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = f.Name
			}
			child, present := obj[name]
			if !present {
				if strings.Contains(opts, "omitempty") {
					continue
				}
				return fmt.Errorf("%s: missing field %q", path, name)
			}
			if err := shapeOf(child, f.Type, path+"."+name); err != nil {
				return err
			}
		}
	}
	return nil
}

// MsgpackCodec stores values as MessagePack. It is more compact than
// JSONCodec but not readable by the Python service.
type MsgpackCodec[T any] struct{}

func (MsgpackCodec[T]) Name() string { return CodecMsgpack }

func (MsgpackCodec[T]) Encode(value T) ([]byte, error) {
	return msgpack.Marshal(value)
}

func (MsgpackCodec[T]) Decode(data []byte) (T, error) {
	var value T
	if err := msgpack.Unmarshal(data, &value); err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

// pythonLayout rewrites compact JSON into the layout produced by CPython's
// json.dumps(obj) (separators=(", ", ": "), ensure_ascii=True).
// src must be valid compact JSON.
func pythonLayout(src []byte) []byte {
	out := make([]byte, 0, len(src)+len(src)/4)
	inString := false

	for i := 0; i < len(src); {
		b := src[i]

		if !inString {
			switch b {
			case '"':
				inString = true
				out = append(out, b)
			case ',':
				out = append(out, ',', ' ')
			case ':':
				out = append(out, ':', ' ')
			default:
				out = append(out, b)
			}
			i++
			continue
		}

		switch {
		case b == '\\':
			if i+6 <= len(src) && src[i+1] == 'u' {
				switch string(src[i : i+6]) {
				case `\u0008`:
					out = append(out, `\b`...)
				case `\u000c`:
					out = append(out, `\f`...)
				default:
					out = append(out, bytes.ToLower(src[i:i+6])...)
				}
				i += 6
				continue
			}
			out = append(out, src[i:i+2]...)
			i += 2
		case b == '"':
			inString = false
			out = append(out, b)
			i++
		case b == 0x7f:
			out = append(out, `\u007f`...)
			i++
		case b < utf8.RuneSelf:
			out = append(out, b)
			i++
		default:
			r, size := utf8.DecodeRune(src[i:])
			out = appendUnicodeEscape(out, r)
			i += size
		}
	}

	return out
}

func appendUnicodeEscape(out []byte, r rune) []byte {
	if r > 0xFFFF {
		hi, lo := utf16.EncodeRune(r)
		out = appendUnicodeEscape(out, hi)
		return appendUnicodeEscape(out, lo)
	}
	const hex = "0123456789abcdef"
	return append(out, '\\', 'u',
		hex[(r>>12)&0xF], hex[(r>>8)&0xF], hex[(r>>4)&0xF], hex[r&0xF])
}
