// Package canonical produces the deterministic byte encoding that hop messages
// and acknowledgements are signed over.
//
// The encoding is whitespace-free JSON with map keys sorted byte-wise at every
// level of nesting. It depends only on content: two maps holding the same
// entries encode to the same bytes regardless of how they were built.
package canonical

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/ugorji/go/codec"
)

// ErrUnsupportedType is returned for values outside the encodable set: strings,
// integers, nil, string-keyed maps and slices of those. Strings, map keys
// included, must be valid UTF-8.
var ErrUnsupportedType = errors.New("canonical: unsupported type")

// Encode returns the canonical encoding of m.
func Encode(m map[string]interface{}) ([]byte, error) {
	norm, err := normalize(m)
	if err != nil {
		return nil, err
	}

	jh := new(codec.JsonHandle)
	jh.Canonical = true

	var b bytes.Buffer
	enc := codec.NewEncoder(&b, jh)
	if err := enc.Encode(norm); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// normalize rebuilds v with every integer as an int64 and every container as a
// map[string]interface{} or []interface{}, so that the encoder always takes the
// same path for the same logical value.
func normalize(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return validString(t)
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		return fromUint(uint64(t))
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return fromUint(t)
	case *string:
		if t == nil {
			return nil, nil
		}
		return validString(*t)
	case map[string]string:
		out := make(map[string]interface{}, len(t))
		for k, s := range t {
			if _, err := validString(k); err != nil {
				return nil, err
			}
			if _, err := validString(s); err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = s
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			if _, err := validString(k); err != nil {
				return nil, err
			}
			n, err := normalize(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			if _, err := validString(s); err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = s
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w %T", ErrUnsupportedType, v)
	}
}

// validString refuses invalid UTF-8, which the encoder would otherwise
// replace with U+FFFD and so map distinct strings to the same bytes.
func validString(s string) (interface{}, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: invalid UTF-8 in %q", ErrUnsupportedType, s)
	}
	return s, nil
}

func fromUint(u uint64) (interface{}, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("%w: integer %d overflows int64", ErrUnsupportedType, u)
	}
	return int64(u), nil
}
