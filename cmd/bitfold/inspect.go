package main

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/rawbytedev/bitfold"
)

func runInspect(e *env, args []string) error {
	var sf schemaFlags
	fs := newFlagSet(e, "inspect")
	sf.bind(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	r, err := sf.load(e)
	if err != nil {
		return err
	}
	schemas := r.Schemas()
	if sf.schema != "" {
		s, err := r.Lookup(sf.schema)
		if err != nil {
			return err
		}
		schemas = []*bitfold.Schema{s}
	}
	for i, s := range schemas {
		if i > 0 {
			fmt.Fprintln(e.stdout)
		}
		if err := describe(e.stdout, s); err != nil {
			return err
		}
	}
	return nil
}

func describe(w io.Writer, s *bitfold.Schema) error {
	bitLen := "variable"
	if n := s.BitLen(); n >= 0 {
		bitLen = fmt.Sprint(n)
	}
	fp := s.Fingerprint()
	_, err := fmt.Fprintf(w, "%s\n  format:      %s\n  flat count:  %d\n  bit length:  %s\n  fingerprint: %s\n  fields:\n",
		s.Name(), s.Format(), s.FlatCount(), bitLen, hex.EncodeToString(fp[:]))
	if err != nil {
		return err
	}
	for _, f := range s.Fields() {
		kind := f.Kind.String()
		if f.Token != kind {
			kind = f.Token + " -> " + kind
		}
		if _, err := fmt.Fprintf(w, "    %-16s %s\n", f.Name, kind); err != nil {
			return err
		}
	}
	return nil
}
