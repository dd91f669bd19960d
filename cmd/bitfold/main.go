// Command bitfold folds and unfolds records described by a YAML layout
// document.
//
//	bitfold [--log-level L] [--log-format F] <command> --layout FILE [flags]
//
// Commands:
//
//	fold     encode a record given as YAML or JSON, print hex
//	unfold   decode hex, print the record as YAML
//	inspect  print compiled schemas
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/rawbytedev/bitfold"
	"github.com/rawbytedev/bitfold/pkg/layout"
)

type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    zerolog.Logger
}

type command struct {
	name  string
	usage string
	run   func(e *env, args []string) error
}

var commands = []command{
	{"fold", "encode a record given as YAML or JSON, print hex", runFold},
	{"unfold", "decode hex, print the record as YAML", runUnfold},
	{"inspect", "print compiled schemas", runInspect},
}

// errUsage marks errors that exit with status 2.
var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("bitfold", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.SetOutput(stderr)
	level := flags.String("log-level", "warn", "log level: debug, info, warn, error")
	format := flags.String("log-format", "console", "log format: console or json")
	flags.Usage = func() { usage(stderr, flags) }
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	log, err := newLogger(stderr, *level, *format)
	if err != nil {
		fmt.Fprintf(stderr, "bitfold: %v\n", err)
		return 2
	}
	e := &env{stdin: stdin, stdout: stdout, stderr: stderr, log: log}

	rest := flags.Args()
	if len(rest) == 0 {
		usage(stderr, flags)
		return 2
	}
	for _, c := range commands {
		if c.name != rest[0] {
			continue
		}
		err := c.run(e, rest[1:])
		switch {
		case err == nil:
			return 0
		case errors.Is(err, pflag.ErrHelp):
			return 0
		case errors.Is(err, errUsage):
			fmt.Fprintf(stderr, "bitfold %s: %v\n", c.name, err)
			return 2
		}
		log.Error().Err(err).Str("command", c.name).Msg("failed")
		return 1
	}
	fmt.Fprintf(stderr, "bitfold: unknown command %q\n", rest[0])
	usage(stderr, flags)
	return 2
}

func usage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(w, "usage: bitfold [flags] <command> --layout FILE [command flags]")
	fmt.Fprintln(w, "\ncommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(w, "\nflags:")
	fmt.Fprint(w, flags.FlagUsages())
}

func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	switch format {
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// schemaFlags are shared by every command.
type schemaFlags struct {
	layout string
	schema string
}

func (f *schemaFlags) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&f.layout, "layout", "l", "", "layout document (YAML)")
	fs.StringVarP(&f.schema, "schema", "s", "", "schema name")
}

// load builds the registry described by the layout document.
func (f *schemaFlags) load(e *env) (*bitfold.Registry, error) {
	if f.layout == "" {
		return nil, fmt.Errorf("%w: --layout is required", errUsage)
	}
	doc, err := layout.Load(f.layout)
	if err != nil {
		return nil, err
	}
	r, err := doc.NewRegistry(bitfold.Options{Logger: &e.log})
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("layout", f.layout).Int("schemas", len(r.Schemas())).Msg("layout loaded")
	return r, nil
}

// lookup requires --schema.
func (f *schemaFlags) lookup(r *bitfold.Registry) (*bitfold.Schema, error) {
	if f.schema == "" {
		return nil, fmt.Errorf("%w: --schema is required", errUsage)
	}
	return r.Lookup(f.schema)
}

func newFlagSet(e *env, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("bitfold "+name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}
	return nil
}
