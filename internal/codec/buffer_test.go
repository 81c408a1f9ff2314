package codec

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestBufferMarshal(t *testing.T) {
	data, err := json.Marshal(Buffer([]byte{1, 2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	var wire map[string]string
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatal(err)
	}
	if wire["type"] != "Buffer" {
		t.Errorf("type = %q, want Buffer", wire["type"])
	}
	if wire["data"] != "AQID" {
		t.Errorf("data = %q, want AQID", wire["data"])
	}
}

func TestBufferUnmarshalBase64(t *testing.T) {
	var b Buffer
	if err := json.Unmarshal([]byte(`{"type":"Buffer","data":"AQID"}`), &b); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Errorf("b = %v, want [1 2 3]", b)
	}
}

// The legacy wire form carries the bytes as an integer array.
func TestBufferUnmarshalIntArray(t *testing.T) {
	var b Buffer
	if err := json.Unmarshal([]byte(`{"type":"Buffer","data":[1,2,3]}`), &b); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Errorf("b = %v, want [1 2 3]", b)
	}
}

func TestBufferUnmarshalRejectsOtherObjects(t *testing.T) {
	var b Buffer
	if err := json.Unmarshal([]byte(`{"type":"Other","data":"AQID"}`), &b); err == nil {
		t.Error("expected error for non-Buffer object")
	}
}

func TestMarshalNestedBytes(t *testing.T) {
	v := map[string]any{
		"name": "creds",
		"keys": []any{
			map[string]any{"private": []byte{9, 8}},
		},
	}
	data, err := Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"type":"Buffer"`) {
		t.Errorf("nested []byte not encoded as Buffer: %s", data)
	}
}

func TestMarshalStructWithPlainByteSlice(t *testing.T) {
	type rec struct {
		Name string `json:"name"`
		Key  []byte `json:"key"`
	}
	data, err := Marshal(rec{Name: "n", Key: []byte{1}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"type":"Buffer"`) {
		t.Errorf("struct []byte field not encoded as Buffer: %s", data)
	}
}

func TestMarshalOmitemptyRespected(t *testing.T) {
	type rec struct {
		A string `json:"a,omitempty"`
		B int    `json:"b"`
	}
	data, err := Marshal(rec{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), `"a"`) {
		t.Errorf("omitempty field emitted: %s", data)
	}
	if !strings.Contains(string(data), `"b":0`) {
		t.Errorf("non-omitempty field missing: %s", data)
	}
}

func TestUnmarshalRevivesBuffers(t *testing.T) {
	raw := []byte(`{"outer":{"blob":{"type":"Buffer","data":"AQID"},"n":5},"list":[{"type":"Buffer","data":[4]}]}`)
	v, err := Unmarshal(raw)
	if err != nil {
		t.Fatal(err)
	}
	m := v.(map[string]any)
	outer := m["outer"].(map[string]any)
	blob, ok := outer["blob"].(Buffer)
	if !ok {
		t.Fatalf("blob not revived as Buffer: %T", outer["blob"])
	}
	if !bytes.Equal(blob, []byte{1, 2, 3}) {
		t.Errorf("blob = %v", blob)
	}
	list := m["list"].([]any)
	if b, ok := list[0].(Buffer); !ok || !bytes.Equal(b, []byte{4}) {
		t.Errorf("list[0] = %v (%T)", list[0], list[0])
	}
	if outer["n"].(float64) != 5 {
		t.Errorf("n = %v", outer["n"])
	}
}

// A full encode/decode cycle over the kind of value the auth layer stores.
func TestRoundTrip(t *testing.T) {
	v := map[string]any{
		"registrationId": 123,
		"noiseKey": map[string]any{
			"public":  Buffer([]byte{1, 2}),
			"private": Buffer([]byte{3, 4}),
		},
		"platform": "web",
		"flags":    []any{true, nil, "x"},
	}
	data, err := Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Fatal("output is not valid JSON")
	}
	back, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	noise := back.(map[string]any)["noiseKey"].(map[string]any)
	pub, ok := noise["public"].(Buffer)
	if !ok || !bytes.Equal(pub, []byte{1, 2}) {
		t.Errorf("public = %v (%T)", noise["public"], noise["public"])
	}
}
