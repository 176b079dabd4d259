// Package codec converts raw 16-bit register words to and from typed
// values. It is pure: no I/O, no state.
package codec

import (
	"fmt"
	"math"
	"strings"

	"github.com/nichlasrohde/ha-ecl-modbus/internal/catalog"
)

// Kind discriminates the two value shapes a register can decode to.
type Kind uint8

const (
	KindNumber Kind = iota
	KindText
)

// Value is a decoded register value. Numbers carry the scaled
// engineering value; text carries a trimmed ASCII string.
type Value struct {
	Kind Kind
	Num  float64
	Text string
}

// Number wraps a numeric value.
func Number(v float64) Value { return Value{Kind: KindNumber, Num: v} }

// Text wraps a string value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

func (v Value) String() string {
	if v.Kind == KindText {
		return v.Text
	}
	return fmt.Sprintf("%g", v.Num)
}

// DecodeError reports a word count that does not match the register's
// span. With a correct catalog this never happens at runtime.
type DecodeError struct {
	Address uint16
	Want    uint16
	Got     int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: register %d: want %d words, got %d", e.Address, e.Want, e.Got)
}

// EncodeError reports a write value that cannot be represented on the
// wire or violates the register's limits. Raised before any I/O.
type EncodeError struct {
	Address uint16
	Reason  string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("codec: register %d: %s", e.Address, e.Reason)
}

// Decode converts raw words into a typed value per the definition.
// Out-of-range numerics are passed through untouched; the caller decides
// whether to flag them (controllers report implausible readings when a
// sensor is disconnected).
func Decode(def catalog.Definition, words []uint16) (Value, error) {
	if len(words) != int(def.Span()) {
		return Value{}, &DecodeError{Address: def.Address, Want: def.Span(), Got: len(words)}
	}

	switch def.Wire {
	case catalog.Int16:
		return Number(float64(int16(words[0])) * def.EffectiveScale()), nil

	case catalog.UInt16:
		return Number(float64(words[0]) * def.EffectiveScale()), nil

	case catalog.Float32:
		bits := uint32(words[0])<<16 | uint32(words[1])
		return Number(float64(math.Float32frombits(bits)) * def.EffectiveScale()), nil

	case catalog.String8, catalog.String16:
		b := make([]byte, 0, len(words)*2)
		for _, w := range words {
			b = append(b, byte(w>>8), byte(w))
		}
		return Text(strings.TrimSpace(strings.Trim(string(b), "\x00"))), nil
	}

	return Value{}, &DecodeError{Address: def.Address, Want: def.Span(), Got: len(words)}
}

// InRange reports whether a decoded value sits inside the definition's
// valid range. Values without a range are always in range.
func InRange(def catalog.Definition, v Value) bool {
	if v.Kind != KindNumber {
		return true
	}
	if def.Min != nil && v.Num < *def.Min {
		return false
	}
	if def.Max != nil && v.Num > *def.Max {
		return false
	}
	return true
}

// Encode converts a typed value into raw words, the exact inverse of
// Decode. It rejects values outside the wire type's representable range,
// outside the valid range, off the step grid, or outside the enum token
// set.
func Encode(def catalog.Definition, v Value) ([]uint16, error) {
	switch def.Wire {
	case catalog.Int16, catalog.UInt16, catalog.Float32:
		if v.Kind != KindNumber {
			return nil, &EncodeError{Address: def.Address, Reason: "numeric register requires a numeric value"}
		}
		if err := checkLimits(def, v.Num); err != nil {
			return nil, err
		}
		return encodeNumber(def, v.Num)

	case catalog.String8, catalog.String16:
		if v.Kind != KindText {
			return nil, &EncodeError{Address: def.Address, Reason: "string register requires a text value"}
		}
		return encodeString(def, v.Text)
	}

	return nil, &EncodeError{Address: def.Address, Reason: "unknown wire type"}
}

func checkLimits(def catalog.Definition, v float64) error {
	if def.Min != nil && v < *def.Min {
		return &EncodeError{Address: def.Address, Reason: fmt.Sprintf("value %g below minimum %g", v, *def.Min)}
	}
	if def.Max != nil && v > *def.Max {
		return &EncodeError{Address: def.Address, Reason: fmt.Sprintf("value %g above maximum %g", v, *def.Max)}
	}
	if def.Step != nil && *def.Step > 0 {
		base := 0.0
		if def.Min != nil {
			base = *def.Min
		}
		steps := (v - base) / *def.Step
		if math.Abs(steps-math.Round(steps)) > 1e-6 {
			return &EncodeError{Address: def.Address, Reason: fmt.Sprintf("value %g not a multiple of step %g", v, *def.Step)}
		}
	}
	if def.Enum != nil {
		token := int64(math.Round(v))
		if _, ok := def.Enum[token]; !ok {
			return &EncodeError{Address: def.Address, Reason: fmt.Sprintf("value %g is not an allowed token", v)}
		}
	}
	return nil
}

func encodeNumber(def catalog.Definition, v float64) ([]uint16, error) {
	raw := v / def.EffectiveScale()

	switch def.Wire {
	case catalog.Int16:
		r := math.Round(raw)
		if r < math.MinInt16 || r > math.MaxInt16 {
			return nil, &EncodeError{Address: def.Address, Reason: fmt.Sprintf("raw value %g does not fit int16", r)}
		}
		return []uint16{uint16(int16(r))}, nil

	case catalog.UInt16:
		r := math.Round(raw)
		if r < 0 || r > math.MaxUint16 {
			return nil, &EncodeError{Address: def.Address, Reason: fmt.Sprintf("raw value %g does not fit uint16", r)}
		}
		return []uint16{uint16(r)}, nil

	case catalog.Float32:
		if math.Abs(raw) > math.MaxFloat32 {
			return nil, &EncodeError{Address: def.Address, Reason: fmt.Sprintf("raw value %g does not fit float32", raw)}
		}
		bits := math.Float32bits(float32(raw))
		return []uint16{uint16(bits >> 16), uint16(bits)}, nil
	}

	return nil, &EncodeError{Address: def.Address, Reason: "unknown numeric wire type"}
}

func encodeString(def catalog.Definition, s string) ([]uint16, error) {
	maxLen := int(def.Span()) * 2
	if len(s) > maxLen {
		return nil, &EncodeError{Address: def.Address, Reason: fmt.Sprintf("string longer than %d characters", maxLen)}
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return nil, &EncodeError{Address: def.Address, Reason: "string must be ASCII"}
		}
	}

	b := make([]byte, maxLen)
	copy(b, s)

	words := make([]uint16, def.Span())
	for i := range words {
		words[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return words, nil
}
