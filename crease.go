package bitfold

import (
	"fmt"

	"github.com/rawbytedev/bitfold/pkg/atom"
)

// Crease converts a field value on its way into (Fold) and out of
// (Unfold) the bit stream. Format is only used by custom-format
// creases: a field written as "level=percent" with a crease keyed
// "percent" is packed using Format, which must be a valid atom.
type Crease struct {
	Fold   func(any) (any, error)
	Unfold func(any) (any, error)
	Format string
}

// Creases keys each Crease by field name, by atom token (for example
// "uint:8") or by custom format name. Name keys win over format keys.
type Creases map[string]Crease

type creaseTable struct {
	byName   map[string]Crease
	byFormat map[string]Crease
}

func (t creaseTable) resolve(field, token string) (Crease, bool) {
	if c, ok := t.byName[field]; ok {
		return c, true
	}
	c, ok := t.byFormat[token]
	return c, ok
}

func (t creaseTable) empty() bool {
	return len(t.byName) == 0 && len(t.byFormat) == 0
}

func (cs Creases) validate() (string, error) {
	for key, c := range cs {
		if c.Fold == nil {
			return key, fmt.Errorf("%w: no fold function", ErrInvalidCrease)
		}
		if c.Unfold == nil {
			return key, fmt.Errorf("%w: no unfold function", ErrInvalidCrease)
		}
	}
	return "", nil
}

// customFormat resolves a token that names a custom-format crease.
func (cs Creases) customFormat(token string) (atom.Atom, bool, error) {
	c, ok := cs[token]
	if !ok {
		return atom.Atom{}, false, nil
	}
	if c.Format == "" {
		return atom.Atom{}, true, fmt.Errorf("%w: custom format needs a Format atom", ErrInvalidCrease)
	}
	a, err := atom.Parse(c.Format)
	if err != nil {
		return atom.Atom{}, true, wrap(ErrInvalidCrease, err)
	}
	return a, true, nil
}
