package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rawbytedev/bitfold"
	"github.com/rawbytedev/bitfold/pkg/atom"
	"github.com/rawbytedev/bitfold/pkg/bitstream"
)

// readInput returns inline unless it is empty, reading path otherwise.
// A path of "-" reads stdin.
func readInput(e *env, inline, path string) ([]byte, error) {
	switch {
	case inline != "" && path != "":
		return nil, fmt.Errorf("%w: give the input inline or as a file, not both", errUsage)
	case inline != "":
		return []byte(inline), nil
	case path == "-":
		return io.ReadAll(e.stdin)
	case path != "":
		return os.ReadFile(path)
	}
	return nil, fmt.Errorf("%w: no input given", errUsage)
}

// decodeRecord parses YAML or JSON into a record shaped like s.
func decodeRecord(s *bitfold.Schema, data []byte) (bitfold.Record, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse values: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse values: not a mapping")
	}
	return coerce(s, doc.Content[0])
}

// coerce decodes a mapping node into a Record. Digit and bits fields
// keep the scalar exactly as written, so an unquoted 0x1f or 101 stays
// a digit string instead of becoming an integer.
func coerce(s *bitfold.Schema, m *yaml.Node) (bitfold.Record, error) {
	var in map[string]any
	if err := m.Decode(&in); err != nil {
		return nil, fmt.Errorf("parse values: %w", err)
	}
	out := make(bitfold.Record, len(in))
	for k, v := range in {
		out[k] = v
	}
	for _, f := range s.Fields() {
		node := valueNode(m, f.Name)
		if node == nil {
			continue
		}
		if f.Kind.IsNested() {
			if node.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("%s: want a mapping for %s", f.Name, f.Kind.Schema().Name())
			}
			rec, err := coerce(f.Kind.Schema(), node)
			if err != nil {
				return nil, fmt.Errorf("%s.%w", f.Name, err)
			}
			out[f.Name] = rec
			continue
		}
		if node.Kind != yaml.ScalarNode {
			continue
		}
		switch f.Kind.Atom().Type {
		case atom.Hex, atom.Oct, atom.Bin:
			out[f.Name] = node.Value
		case atom.Bits:
			b, err := parseBits(node.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
			out[f.Name] = b
		}
	}
	return out, nil
}

func valueNode(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// parseBits accepts 0x-prefixed hex or binary digits.
func parseBits(s string) (bitstream.Bits, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	digits, isHex := strings.CutPrefix(s, "0x")
	if !isHex {
		return bitstream.FromBinary(s)
	}
	var w bitstream.Writer
	for _, c := range digits {
		n, err := strconv.ParseUint(string(c), 16, 8)
		if err != nil {
			return bitstream.Bits{}, fmt.Errorf("invalid hex digit %q", c)
		}
		w.WriteBits(n, 4)
	}
	return w.Bits(), nil
}

// parseHex decodes the hex printed by fold. nbits below zero keeps
// every bit.
func parseHex(s string, nbits int) (bitstream.Bits, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return bitstream.Bits{}, fmt.Errorf("%w: --hex: %w", errUsage, err)
	}
	if nbits < 0 {
		return bitstream.FromBytes(raw), nil
	}
	b, err := bitstream.New(raw, nbits)
	if err != nil {
		return bitstream.Bits{}, fmt.Errorf("%w: --bits %d with %d bytes", errUsage, nbits, len(raw))
	}
	return b, nil
}

// recordNode renders v in field order.
func recordNode(s *bitfold.Schema, v any) (*yaml.Node, error) {
	rec, ok := v.(bitfold.Record)
	if !ok {
		return nil, fmt.Errorf("%s: decoded %T, want a record", s.Name(), v)
	}
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range s.Fields() {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: f.Name}
		var val *yaml.Node
		if f.Kind.IsNested() {
			var err error
			if val, err = recordNode(f.Kind.Schema(), rec[f.Name]); err != nil {
				return nil, err
			}
		} else {
			val = new(yaml.Node)
			x := rec[f.Name]
			if b, ok := x.(bitstream.Bits); ok {
				x = b.String()
			}
			if err := val.Encode(x); err != nil {
				return nil, err
			}
		}
		node.Content = append(node.Content, key, val)
	}
	return node, nil
}

func writeYAML(w io.Writer, node *yaml.Node) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return err
	}
	return enc.Close()
}
