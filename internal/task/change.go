package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind tags the shape of a recorded field value.
type ValueKind string

const (
	KindNull    ValueKind = "null"
	KindString  ValueKind = "string"
	KindNumber  ValueKind = "number"
	KindBool    ValueKind = "boolean"
	KindStrings ValueKind = "strings"
	KindObject  ValueKind = "object"
)

// ChangeValue is one side of a history entry. Stored text is always produced
// by Encode and read back with ParseChangeValue.
type ChangeValue struct {
	Kind   ValueKind
	Str    string
	Num    float64
	Bool   bool
	List   []string
	Object json.RawMessage
}

func StringValue(s string) ChangeValue    { return ChangeValue{Kind: KindString, Str: s} }
func NumberValue(n float64) ChangeValue   { return ChangeValue{Kind: KindNumber, Num: n} }
func BoolValue(b bool) ChangeValue        { return ChangeValue{Kind: KindBool, Bool: b} }
func StringsValue(l []string) ChangeValue { return ChangeValue{Kind: KindStrings, List: l} }
func NullValue() ChangeValue              { return ChangeValue{Kind: KindNull} }

// ObjectValue encodes v (a struct or map) as an object value.
func ObjectValue(v any) ChangeValue {
	raw, err := json.Marshal(v)
	if err != nil {
		return NullValue()
	}
	return ChangeValue{Kind: KindObject, Object: raw}
}

// Encode returns the canonical JSON text for the value.
func (v ChangeValue) Encode() string {
	var out []byte
	switch v.Kind {
	case KindString:
		out, _ = json.Marshal(v.Str)
	case KindNumber:
		out, _ = json.Marshal(v.Num)
	case KindBool:
		out, _ = json.Marshal(v.Bool)
	case KindStrings:
		list := v.List
		if list == nil {
			list = []string{}
		}
		out, _ = json.Marshal(list)
	case KindObject:
		var buf bytes.Buffer
		if err := json.Compact(&buf, v.Object); err != nil {
			return "null"
		}
		return buf.String()
	default:
		return "null"
	}
	return string(out)
}

// Value returns the plain Go value, mainly for JSON responses.
func (v ChangeValue) Value() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num
	case KindBool:
		return v.Bool
	case KindStrings:
		return v.List
	case KindObject:
		var m map[string]any
		_ = json.Unmarshal(v.Object, &m)
		return m
	}
	return nil
}

// String renders the value for humans.
func (v ChangeValue) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindStrings:
		return strings.Join(v.List, ", ")
	case KindObject:
		return string(v.Object)
	}
	return "null"
}

// MarshalJSON emits the tagged form {kind, value}.
func (v ChangeValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  ValueKind `json:"kind"`
		Value any       `json:"value"`
	}{v.Kind, v.Value()})
}

// ParseChangeValue decodes stored text produced by Encode.
func ParseChangeValue(s string) (ChangeValue, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || trimmed == "null" {
		return NullValue(), nil
	}
	switch trimmed[0] {
	case '"':
		var str string
		if err := json.Unmarshal([]byte(trimmed), &str); err != nil {
			return ChangeValue{}, fmt.Errorf("decode string value: %w", err)
		}
		return StringValue(str), nil
	case '[':
		var list []string
		if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
			return ChangeValue{}, fmt.Errorf("decode list value: %w", err)
		}
		return StringsValue(list), nil
	case '{':
		if !json.Valid([]byte(trimmed)) {
			return ChangeValue{}, fmt.Errorf("decode object value: invalid JSON")
		}
		return ChangeValue{Kind: KindObject, Object: json.RawMessage(trimmed)}, nil
	case 't', 'f':
		b, err := strconv.ParseBool(trimmed)
		if err != nil {
			return ChangeValue{}, fmt.Errorf("decode boolean value: %w", err)
		}
		return BoolValue(b), nil
	}
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return ChangeValue{}, fmt.Errorf("decode value %q: %w", trimmed, err)
	}
	return NumberValue(n), nil
}

// encodeOptional returns the canonical text and whether the value is present.
func encodeOptional(v *ChangeValue) (string, bool) {
	if v == nil {
		return "", false
	}
	return v.Encode(), true
}
