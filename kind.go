package prefer

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// ValueKind names the data type of a pref's value.
type ValueKind string

// Constants for the supported value kinds.
const (
	// KindBool represents a boolean pref.
	KindBool ValueKind = "bool"
	// KindInt represents an int pref.
	KindInt ValueKind = "int"
	// KindInt64 represents a 64-bit integer ("long") pref.
	KindInt64 ValueKind = "int64"
	// KindFloat represents a float32 pref.
	KindFloat ValueKind = "float"
	// KindString represents a string pref.
	KindString ValueKind = "string"
)

// ParseValueKind maps a kind name to a ValueKind. "long" is accepted as an
// alias for int64 and "boolean" for bool.
func ParseValueKind(name string) (ValueKind, error) {
	switch name {
	case "bool", "boolean":
		return KindBool, nil
	case "int", "integer":
		return KindInt, nil
	case "int64", "long":
		return KindInt64, nil
	case "float", "float32":
		return KindFloat, nil
	case "string":
		return KindString, nil
	default:
		return "", fmt.Errorf("%w: unsupported kind %q", ErrInvalidValue, name)
	}
}

// valueCodec encodes, decodes and validates values of one kind.
type valueCodec[V any] struct {
	kind     ValueKind
	encode   func(V) string
	decode   func(string) (V, error)
	validate func(V) error
}

var boolCodec = valueCodec[bool]{
	kind:     KindBool,
	encode:   strconv.FormatBool,
	decode:   strconv.ParseBool,
	validate: func(bool) error { return nil },
}

var intCodec = valueCodec[int]{
	kind:     KindInt,
	encode:   strconv.Itoa,
	decode:   strconv.Atoi,
	validate: func(int) error { return nil },
}

var int64Codec = valueCodec[int64]{
	kind:   KindInt64,
	encode: func(v int64) string { return strconv.FormatInt(v, 10) },
	decode: func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	},
	validate: func(int64) error { return nil },
}

var floatCodec = valueCodec[float32]{
	kind:   KindFloat,
	encode: func(v float32) string { return strconv.FormatFloat(float64(v), 'g', -1, 32) },
	decode: func(s string) (float32, error) {
		f, err := strconv.ParseFloat(s, 32)
		return float32(f), err
	},
	validate: func(v float32) error {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: float must be finite", ErrInvalidValue)
		}
		return nil
	},
}

var stringCodec = valueCodec[string]{
	kind:   KindString,
	encode: func(v string) string { return v },
	decode: func(s string) (string, error) { return s, nil },
	validate: func(v string) error {
		if !utf8.ValidString(v) {
			return fmt.Errorf("%w: string must be valid UTF-8", ErrInvalidValue)
		}
		return nil
	},
}

func (c valueCodec[V]) decodeValue(s string) (V, error) {
	v, err := c.decode(s)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("%w: can not decode %q as %s: %v", ErrInvalidValue, s, c.kind, err)
	}
	return v, nil
}
