package common

import (
	"errors"
	"math"
)

var (
	ErrNotNumber = errors.New("not a number")
	ErrNegative  = errors.New("negative value")
	ErrFraction  = errors.New("value has a fractional part")
	ErrOverflow  = errors.New("value overflows 64 bits")
)

// WriteVarUint appends a varint to buf (allocating if needed).
func WriteVarUint(buf []byte, x uint64) []byte {
	for x >= 0x80 {
		buf = append(buf, byte(x)|0x80)
		x >>= 7
	}
	return append(buf, byte(x))
}

// ReadVarUint decodes a varint from b returning value and bytes consumed.
// A truncated varint returns (0, 0).
func ReadVarUint(b []byte) (uint64, int) {
	var x uint64
	var s uint
	for i, c := range b {
		if i == 10 {
			return 0, 0
		}
		x |= uint64(c&0x7F) << s
		if c&0x80 == 0 {
			return x, i + 1
		}
		s += 7
	}
	return 0, 0
}

// ToInt64 converts any Go integer to int64.
func ToInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, ErrOverflow
		}
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, ErrOverflow
		}
		return int64(n), nil
	default:
		return 0, ErrNotNumber
	}
}

// ToUint64 converts any non-negative Go integer to uint64.
func ToUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case int, int8, int16, int32, int64:
		i, _ := ToInt64(n)
		if i < 0 {
			return 0, ErrNegative
		}
		return uint64(i), nil
	default:
		return 0, ErrNotNumber
	}
}

// ToFloat64 converts any Go integer or float to float64.
func ToFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case uint64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	}
	i, err := ToInt64(v)
	if err != nil {
		return 0, err
	}
	return float64(i), nil
}

// IntegralInt64 is ToInt64 that also accepts floats without a fractional part.
func IntegralInt64(v any) (int64, error) {
	switch f := v.(type) {
	case float32, float64:
		x, _ := ToFloat64(f)
		if x != math.Trunc(x) {
			return 0, ErrFraction
		}
		if x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, ErrOverflow
		}
		return int64(x), nil
	}
	return ToInt64(v)
}
