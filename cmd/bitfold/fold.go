package main

import (
	"encoding/hex"
	"fmt"

	"github.com/rawbytedev/bitfold/pkg/frame"
)

func runFold(e *env, args []string) error {
	var (
		sf         schemaFlags
		values     string
		valuesFile string
		seal       string
	)
	fs := newFlagSet(e, "fold")
	sf.bind(fs)
	fs.StringVar(&values, "values", "", "record as inline YAML or JSON")
	fs.StringVar(&valuesFile, "values-file", "", "read the record from a file, - for stdin")
	fs.StringVar(&seal, "frame", "", "wrap in a frame compressed with none, zstd or lz4")
	fs.Lookup("frame").NoOptDefVal = "none"
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	r, err := sf.load(e)
	if err != nil {
		return err
	}
	s, err := sf.lookup(r)
	if err != nil {
		return err
	}
	data, err := readInput(e, values, valuesFile)
	if err != nil {
		return err
	}
	rec, err := decodeRecord(s, data)
	if err != nil {
		return err
	}

	if seal != "" {
		c, err := frame.ParseCompression(seal)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		out, err := s.Seal(rec, c)
		if err != nil {
			return err
		}
		e.log.Debug().Str("schema", s.Name()).Int("bytes", len(out)).Stringer("compression", c).Msg("sealed")
		_, err = fmt.Fprintln(e.stdout, hex.EncodeToString(out))
		return err
	}

	b, err := s.Fold(rec)
	if err != nil {
		return err
	}
	e.log.Debug().Str("schema", s.Name()).Int("bits", b.Len()).Msg("folded")
	_, err = fmt.Fprintln(e.stdout, hex.EncodeToString(b.Bytes()))
	return err
}
