// Command vscript is the VisionScript CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/visionscript/vscript/pkg/alias"
	"github.com/visionscript/vscript/pkg/config"
	"github.com/visionscript/vscript/pkg/diagnostics"
	"github.com/visionscript/vscript/pkg/evaluator"
	"github.com/visionscript/vscript/pkg/fault"
	"github.com/visionscript/vscript/pkg/help"
	"github.com/visionscript/vscript/pkg/ops"
	"github.com/visionscript/vscript/pkg/runtime"
	"github.com/visionscript/vscript/pkg/value"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: vscript <command> [options]")
		fmt.Fprintln(os.Stderr, "commands: run, repl, check, fmt, trace, help, config")
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl(os.Args[2:]))
	case "check":
		os.Exit(cmdCheck(os.Args[2:]))
	case "fmt":
		os.Exit(cmdFmt(os.Args[2:]))
	case "trace":
		os.Exit(cmdTrace(os.Args[2:]))
	case "help", "--help", "-h":
		os.Exit(cmdHelp(os.Args[2:]))
	case "config":
		os.Exit(cmdConfig(os.Args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		os.Exit(1)
	}
}

// runFlags are the options shared by run and repl.
type runFlags struct {
	file      string
	pretty    bool
	verbose   bool
	tracePath string
	seed      int64
	seeded    bool
	inputs    map[string]value.Value
}

func parseRunFlags(args []string) (*runFlags, error) {
	f := &runFlags{inputs: map[string]value.Value{}}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--pretty":
			f.pretty = true
		case "--verbose", "-v":
			f.verbose = true
		case "--trace":
			if i+1 >= len(args) {
				return nil, errors.New("--trace needs a file")
			}
			i++
			f.tracePath = args[i]
		case "--seed":
			if i+1 >= len(args) {
				return nil, errors.New("--seed needs a number")
			}
			i++
			if _, err := fmt.Sscan(args[i], &f.seed); err != nil {
				return nil, fmt.Errorf("--seed: %w", err)
			}
			f.seeded = true
		case "--input":
			if i+1 >= len(args) {
				return nil, errors.New("--input needs key=value")
			}
			i++
			k, v, err := parseInput(args[i])
			if err != nil {
				return nil, err
			}
			f.inputs[k] = v
		default:
			if !strings.HasPrefix(args[i], "-") || args[i] == "-" {
				f.file = args[i]
			}
		}
	}
	return f, nil
}

// parseInput splits key=value and reads the value as a literal.
func parseInput(s string) (string, value.Value, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return "", nil, fmt.Errorf("--input %q: expected key=value", s)
	}
	return k, value.Parse(v), nil
}

// setup loads configuration and builds a runtime from it and the flags.
// The returned cleanup closes the trace file.
func setup(f *runFlags, out io.Writer) (*runtime.Runtime, func(), int) {
	logger := zerolog.Nop()
	if f.verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	cwd, _ := os.Getwd()
	cfg, err := config.Load(cwd)
	if err != nil {
		printDiag(diagnostics.MakeDiag(diagnostics.EConfig, err.Error(), nil, ""), f.pretty)
		return nil, nil, 1
	}
	if cfg.Source != "" {
		logger.Debug().Str("file", cfg.Source).Msg("loaded configuration")
	} else {
		logger.Debug().Msg("no configuration file; using defaults")
	}

	be, err := cfg.NewBackend(logger)
	if err != nil {
		printDiag(diagnostics.MakeDiag(diagnostics.EConfig, err.Error(), nil, ""), f.pretty)
		return nil, nil, 1
	}
	logger.Debug().Str("kind", cfg.Backend.Kind).Str("endpoint", cfg.Backend.Endpoint).Msg("inference backend")

	inputs := cfg.InputValues()
	for k, v := range f.inputs {
		inputs[k] = v
	}

	opts := []runtime.Option{
		runtime.WithBackend(be),
		runtime.WithOutput(out),
		runtime.WithInputs(inputs),
		runtime.WithIndexDSN(cfg.IndexDSN),
	}
	if cfg.ShowDir != "" {
		opts = append(opts, runtime.WithDisplay(&ops.DirDisplay{Dir: cfg.ShowDir, Out: out}))
	}
	if f.seeded {
		opts = append(opts, runtime.WithSeed(f.seed))
	}

	cleanup := func() {}
	if f.tracePath != "" {
		tf, err := os.Create(f.tracePath)
		if err != nil {
			printDiag(diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("cannot create trace file: %s", f.tracePath), nil, ""), f.pretty)
			return nil, nil, 1
		}
		opts = append(opts, runtime.WithTrace(traceWriter(zerolog.New(tf))))
		cleanup = func() { tf.Close() }
	}
	if cfg.Model != "" {
		logger.Debug().Str("model", cfg.Model).Msg("default model")
		opts = append(opts, runtime.WithModel(cfg.Model))
	}

	rt := runtime.New(opts...)
	return rt, cleanup, 0
}

// traceWriter writes each trace event as one JSON line.
func traceWriter(log zerolog.Logger) func(evaluator.TraceEvent) {
	return func(ev evaluator.TraceEvent) {
		e := log.Log().
			Str("ts", ev.Timestamp).
			Str("runId", ev.RunID).
			Str("event", string(ev.Event))
		if ev.Span != nil {
			e = e.Interface("span", ev.Span)
		}
		if len(ev.Data) > 0 {
			e = e.Interface("data", ev.Data)
		}
		e.Send()
	}
}

func cmdRun(args []string) int {
	f, err := parseRunFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if f.file == "" {
		fmt.Fprintln(os.Stderr, "usage: vscript run <file> [--input key=value] [--trace <file>] [--seed n] [--verbose] [--pretty]")
		return 1
	}

	source, filename, exitCode := readSource(f.file, f.pretty)
	if exitCode != 0 {
		return exitCode
	}

	rt, cleanup, code := setup(f, os.Stdout)
	if code != 0 {
		return code
	}
	defer cleanup()

	session := rt.NewSession()
	defer session.Close()

	_, execErr := session.Run(context.Background(), source, filename)
	if execErr != nil {
		return reportError(execErr, f.pretty)
	}
	return 0
}

// reportError prints err and returns the process exit status for it.
func reportError(err error, pretty bool) int {
	var diagErr *runtime.DiagnosticError
	if errors.As(err, &diagErr) {
		fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics(diagErr.Diagnostics, pretty))
		return 2
	}
	if f, ok := fault.As(err); ok {
		printDiag(f.Diagnostic(), pretty)
		return 4
	}
	fmt.Fprintln(os.Stderr, err.Error())
	return 4
}

func printDiag(d diagnostics.Diagnostic, pretty bool) {
	fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics([]diagnostics.Diagnostic{d}, pretty))
}

func cmdCheck(args []string) int {
	var file string
	pretty := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--pretty":
			pretty = true
		default:
			if !strings.HasPrefix(args[i], "-") || args[i] == "-" {
				file = args[i]
			}
		}
	}

	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: vscript check <file> [--pretty]")
		return 1
	}

	source, filename, exitCode := readSource(file, pretty)
	if exitCode != 0 {
		return exitCode
	}

	rt := runtime.New()
	diags := rt.Check(source, filename)
	if len(diags) > 0 {
		fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics(diags, pretty))
		return 2
	}

	if pretty {
		fmt.Println("No errors found.")
	} else {
		fmt.Println("[]")
	}
	return 0
}

func cmdFmt(args []string) int {
	var file string
	write := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--write":
			write = true
		default:
			if !strings.HasPrefix(args[i], "-") {
				file = args[i]
			}
		}
	}

	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: vscript fmt <file> [--write]")
		return 1
	}

	sourceBytes, err := os.ReadFile(file)
	if err != nil {
		printDiag(diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("cannot read file: %s", file), nil, ""), false)
		return 1
	}

	rt := runtime.New()
	formatted, fmtErr := rt.Format(string(sourceBytes), file)
	if fmtErr != nil {
		return reportError(fmtErr, false)
	}

	if write {
		if err := os.WriteFile(file, []byte(formatted), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "error writing file: %s\n", err)
			return 1
		}
	} else {
		fmt.Print(formatted)
	}
	return 0
}

func cmdHelp(args []string) int {
	showIndex := false
	topic := ""
	for _, arg := range args {
		if arg == "--index" || arg == "--ops" {
			showIndex = true
		} else if !strings.HasPrefix(arg, "-") {
			topic = arg
		}
	}

	if showIndex {
		fmt.Print(help.OperationIndex())
		return 0
	}

	if topic == "" {
		fmt.Print(help.QUICKREF)
		return 0
	}

	if doc, ok := help.Operation(alias.Resolve(strings.ToLower(topic))); ok {
		fmt.Print(doc)
		return 0
	}

	_, content, err := help.MatchTopic(topic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\nAvailable topics: %s\n", err, strings.Join(help.TopicList, ", "))
		return 1
	}
	fmt.Print(content)
	return 0
}

func cmdConfig([]string) int {
	cwd, _ := os.Getwd()
	cfg, err := config.Load(cwd)
	if err != nil {
		printDiag(diagnostics.MakeDiag(diagnostics.EConfig, err.Error(), nil, ""), false)
		return 1
	}
	source := cfg.Source
	if source == "" {
		source = "(defaults)"
	}
	fmt.Printf("# %s\n", source)
	b, err := cfg.YAML()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Print(string(b))
	return 0
}

func readSource(file string, pretty bool) (string, string, int) {
	if file == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading stdin: %s\n", err)
			return "", "", 1
		}
		return string(data), "<stdin>", 0
	}

	source, err := os.ReadFile(file)
	if err != nil {
		printDiag(diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("cannot read file: %s", file), nil, ""), pretty)
		return "", "", 1
	}
	return string(source), file, 0
}
