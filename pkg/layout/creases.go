package layout

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rawbytedev/bitfold"
	"github.com/rawbytedev/bitfold/internal/common"
)

var ErrCrease = errors.New("unknown crease")

// ParseCrease builds a crease from its document form:
//
//	offset:N       stores value-N in an integer atom
//	scale:N        stores round(value*N) and unfolds to a float
//	not            inverts a bool
//	enum:a|b|c     stores the index of a label
//	custom:ATOM:C  a custom format packed as ATOM with crease C applied
func ParseCrease(spec string) (bitfold.Crease, error) {
	spec = strings.TrimSpace(spec)
	kind, arg, _ := strings.Cut(spec, ":")
	switch kind {
	case "offset":
		n, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return bitfold.Crease{}, fmt.Errorf("%w: offset %q: %w", ErrCrease, arg, err)
		}
		return offset(n), nil
	case "scale":
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil || f == 0 || math.IsInf(f, 0) || math.IsNaN(f) {
			return bitfold.Crease{}, fmt.Errorf("%w: scale %q", ErrCrease, arg)
		}
		return scale(f), nil
	case "not":
		if arg != "" {
			return bitfold.Crease{}, fmt.Errorf("%w: not takes no argument", ErrCrease)
		}
		return invert(), nil
	case "enum":
		labels := strings.Split(arg, "|")
		if arg == "" || len(labels) < 2 {
			return bitfold.Crease{}, fmt.Errorf("%w: enum needs at least two labels", ErrCrease)
		}
		return enum(labels)
	case "custom":
		format, inner, ok := strings.Cut(arg, ":")
		if !ok {
			return bitfold.Crease{}, fmt.Errorf("%w: custom needs an atom and a crease", ErrCrease)
		}
		// The atom may carry its own width, as in custom:uint:7:scale:100.
		if w, rest, ok := strings.Cut(inner, ":"); ok && isDigits(w) {
			format, inner = format+":"+w, rest
		}
		c, err := ParseCrease(inner)
		if err != nil {
			return bitfold.Crease{}, err
		}
		c.Format = format
		return c, nil
	}
	return bitfold.Crease{}, fmt.Errorf("%w: %q", ErrCrease, spec)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func offset(n int64) bitfold.Crease {
	return bitfold.Crease{
		Fold: func(v any) (any, error) {
			i, err := common.IntegralInt64(v)
			if err != nil {
				return nil, err
			}
			return i - n, nil
		},
		Unfold: func(v any) (any, error) {
			i, err := common.ToInt64(v)
			if err != nil {
				return nil, err
			}
			return i + n, nil
		},
	}
}

func scale(f float64) bitfold.Crease {
	return bitfold.Crease{
		Fold: func(v any) (any, error) {
			x, err := common.ToFloat64(v)
			if err != nil {
				return nil, err
			}
			return int64(math.Round(x * f)), nil
		},
		Unfold: func(v any) (any, error) {
			x, err := common.ToFloat64(v)
			if err != nil {
				return nil, err
			}
			return x / f, nil
		},
	}
}

func invert() bitfold.Crease {
	flip := func(v any) (any, error) {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("not: %T is not a bool", v)
		}
		return !b, nil
	}
	return bitfold.Crease{Fold: flip, Unfold: flip}
}

func enum(labels []string) (bitfold.Crease, error) {
	index := make(map[string]uint64, len(labels))
	for i, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			return bitfold.Crease{}, fmt.Errorf("%w: empty enum label", ErrCrease)
		}
		if _, dup := index[l]; dup {
			return bitfold.Crease{}, fmt.Errorf("%w: enum label %q repeated", ErrCrease, l)
		}
		labels[i] = l
		index[l] = uint64(i)
	}
	return bitfold.Crease{
		Fold: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("enum: %T is not a string", v)
			}
			i, ok := index[s]
			if !ok {
				return nil, fmt.Errorf("enum: unknown label %q", s)
			}
			return i, nil
		},
		Unfold: func(v any) (any, error) {
			i, err := common.ToUint64(v)
			if err != nil {
				return nil, err
			}
			if i >= uint64(len(labels)) {
				return nil, fmt.Errorf("enum: index %d out of range", i)
			}
			return labels[i], nil
		},
	}, nil
}
