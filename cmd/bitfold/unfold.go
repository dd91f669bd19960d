package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rawbytedev/bitfold"
	"github.com/rawbytedev/bitfold/pkg/bitstream"
	"github.com/rawbytedev/bitfold/pkg/frame"
)

func runUnfold(e *env, args []string) error {
	var (
		sf     schemaFlags
		input  string
		file   string
		nbits  int
		sealed bool
		all    bool
	)
	fs := newFlagSet(e, "unfold")
	sf.bind(fs)
	fs.StringVar(&input, "hex", "", "hex printed by fold")
	fs.StringVar(&file, "hex-file", "", "read the hex from a file, - for stdin")
	fs.IntVar(&nbits, "bits", -1, "number of meaningful bits; default all")
	fs.BoolVar(&sealed, "frame", false, "input is a frame written by fold --frame")
	fs.BoolVar(&all, "all", false, "decode concatenated records until the input ends; without --bits, fewer than 8 trailing zero bits are taken as padding")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if sealed && (all || nbits >= 0) {
		return fmt.Errorf("%w: --frame carries its own length", errUsage)
	}

	r, err := sf.load(e)
	if err != nil {
		return err
	}
	data, err := readInput(e, input, file)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(string(data))

	if sealed {
		raw, err := hex.DecodeString(text)
		if err != nil {
			return fmt.Errorf("%w: --hex: %w", errUsage, err)
		}
		f, err := frame.Decode(raw)
		if err != nil {
			return err
		}
		s, err := r.LookupFingerprint(f.Fingerprint)
		if err != nil {
			return err
		}
		if sf.schema != "" && sf.schema != s.Name() {
			return fmt.Errorf("%w: frame holds %s, not %s", bitfold.ErrSchemaMismatch, s.Name(), sf.schema)
		}
		v, err := s.Unfold(nil, f.Bits)
		if err != nil {
			return err
		}
		return emit(e, s, v)
	}

	s, err := sf.lookup(r)
	if err != nil {
		return err
	}
	b, err := parseHex(text, nbits)
	if err != nil {
		return err
	}
	rd := bitstream.NewReader(b)
	if !all {
		v, err := r.UnfoldFrom(s, rd)
		if err != nil {
			return err
		}
		if rd.Remaining() > 0 {
			e.log.Debug().Int("bits", rd.Remaining()).Msg("trailing bits ignored")
		}
		return emit(e, s, v)
	}
	// Whole-byte hex pads the last record; stop once less than one
	// fixed-size record or only the zero padding is left.
	for rd.Remaining() > 0 && (s.BitLen() < 0 || rd.Remaining() >= s.BitLen()) {
		if nbits < 0 && onlyPadding(rd) {
			e.log.Debug().Int("bits", rd.Remaining()).Msg("padding ignored")
			break
		}
		v, err := r.UnfoldFrom(s, rd)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(e.stdout, "---"); err != nil {
			return err
		}
		if err := emit(e, s, v); err != nil {
			return err
		}
	}
	return nil
}

// onlyPadding reports whether rd holds fewer than 8 bits, all zero.
func onlyPadding(rd *bitstream.Reader) bool {
	n, pos := rd.Remaining(), rd.Pos()
	if n == 0 || n >= 8 {
		return false
	}
	v, err := rd.ReadBits(n)
	if serr := rd.Seek(pos); serr != nil {
		return false
	}
	return err == nil && v == 0
}

func emit(e *env, s *bitfold.Schema, v any) error {
	node, err := recordNode(s, v)
	if err != nil {
		return err
	}
	return writeYAML(e.stdout, node)
}
