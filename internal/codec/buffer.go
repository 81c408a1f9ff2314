// Package codec implements the JSON-with-binary wire format used by the
// snapshot and the auth state: byte arrays travel as
// {"type":"Buffer","data":"<base64>"} objects inside otherwise ordinary
// JSON, so credential material survives a round trip.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Buffer is a byte slice that marshals as a Buffer object. On unmarshal it
// accepts both the base64 string form and the legacy integer-array form of
// the data field.
type Buffer []byte

type bufferWire struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON encodes the bytes as {"type":"Buffer","data":"<base64>"}.
func (b Buffer) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"type": "Buffer",
		"data": base64.StdEncoding.EncodeToString(b),
	})
}

// UnmarshalJSON decodes either wire form of a Buffer object.
func (b *Buffer) UnmarshalJSON(data []byte) error {
	var wire bufferWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Type != "Buffer" {
		return fmt.Errorf("codec: not a Buffer object (type %q)", wire.Type)
	}
	raw, err := decodeData(wire.Data)
	if err != nil {
		return err
	}
	*b = raw
	return nil
}

func decodeData(data json.RawMessage) ([]byte, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return base64.StdEncoding.DecodeString(s)
	}
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("codec: buffer data is neither base64 nor byte array")
	}
	out := make([]byte, len(ints))
	for i, n := range ints {
		out[i] = byte(n)
	}
	return out, nil
}

// Marshal serializes v, replacing every byte slice reachable through maps,
// slices, pointers and exported struct fields with the Buffer wire form.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(transform(reflect.ValueOf(v)))
}

// Unmarshal parses data into an untyped tree, reconstructing every
// Buffer-shaped object as a Buffer.
func Unmarshal(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return Revive(v), nil
}

// Revive walks an already-decoded JSON tree and converts Buffer-shaped
// objects back into Buffers in place.
func Revive(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if b, ok := reviveBuffer(t); ok {
			return b
		}
		for k, e := range t {
			t[k] = Revive(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = Revive(e)
		}
		return t
	default:
		return v
	}
}

func reviveBuffer(m map[string]any) (Buffer, bool) {
	if len(m) != 2 || m["type"] != "Buffer" {
		return nil, false
	}
	switch data := m["data"].(type) {
	case string:
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, false
		}
		return raw, true
	case []any:
		out := make(Buffer, len(data))
		for i, e := range data {
			n, ok := e.(float64)
			if !ok {
				return nil, false
			}
			out[i] = byte(n)
		}
		return out, true
	default:
		return nil, false
	}
}

var (
	bufferType    = reflect.TypeOf(Buffer(nil))
	byteSliceType = reflect.TypeOf([]byte(nil))
	marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// transform maps a Go value onto a JSON-ready tree, turning byte slices
// into Buffers. Types with their own MarshalJSON (Buffer included) are
// passed through untouched.
func transform(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	t := v.Type()
	if t == bufferType {
		return v.Interface()
	}
	if t == byteSliceType {
		return Buffer(v.Bytes())
	}
	if t.Implements(marshalerType) {
		return v.Interface()
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return transform(v.Elem())
	case reflect.Map:
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = transform(iter.Value())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = transform(v.Index(i))
		}
		return out
	case reflect.Struct:
		return transformStruct(v)
	default:
		return v.Interface()
	}
}

// transformStruct walks exported fields honoring json tags, so a struct
// with plain []byte fields still emits the Buffer wire form.
func transformStruct(v reflect.Value) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		fv := v.Field(i)
		if f.Anonymous && name == "" {
			if fv.Kind() == reflect.Struct {
				for k, e := range transformStruct(fv) {
					out[k] = e
				}
				continue
			}
		}
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		out[name] = transform(fv)
	}
	return out
}
