// Command mu is the Mu language CLI: a script runner, an interactive REPL
// and a parser round-trip checker.
//
//	mu run <file.mu> [-k]     Evaluate a file (-k keeps going past failing
//	                          top-level forms and reports them at the end).
//	mu repl                   Interactive session with persistent context.
//	mu check <file.mu> ...    Parse files and verify they render back
//	                          byte-for-byte.
//	mu version                Print the version.
//
// An optional ~/.mu.toml configures the REPL history file, color output and
// a list of prelude scripts evaluated into every new context.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/peterh/liner"

	mu "github.com/wabbit-corp/mu-lang"
)

const (
	appName    = "mu"
	configFile = ".mu.toml"
	promptMain = "mu> "
	promptCont = "... "
)

type config struct {
	HistoryFile string   `toml:"history_file"`
	Color       bool     `toml:"color"`
	Prelude     []string `toml:"prelude"`
}

var colorOn = true

func red(s string) string {
	if !colorOn {
		return s
	}
	return "\x1b[31m" + s + "\x1b[0m"
}

func blue(s string) string {
	if !colorOn {
		return s
	}
	return "\x1b[94m" + s + "\x1b[0m"
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := loadConfig()
	colorOn = cfg.Color

	switch os.Args[1] {
	case "run":
		os.Exit(cmdRun(cfg, os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl(cfg))
	case "check":
		os.Exit(cmdCheck(os.Args[2:]))
	case "version":
		fmt.Println(mu.Version)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Printf(`Mu %s

Usage:
  %s run <file.mu> [-k]     Evaluate a script (-k: tolerate failing top-level forms)
  %s repl                   Start the REPL
  %s check <file.mu> ...    Parse files and verify exact round-trip rendering
  %s version                Print the version

`, mu.Version, appName, appName, appName, appName)
}

// loadConfig reads ~/.mu.toml when present; missing files mean defaults.
func loadConfig() config {
	cfg := config{
		HistoryFile: ".mu_history",
		Color:       true,
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return cfg
	}
	path := filepath.Join(home, configFile)
	if _, err := os.Stat(path); err != nil {
		return cfg
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, path, err)
	}
	return cfg
}

// newContext builds the standard CLI context: builtins, a small foreign
// registry, and any configured prelude scripts.
func newContext(cfg config) *mu.ExecutionContext {
	ctx := mu.NewContext()
	mu.RegisterBuiltins(ctx)
	ctx.SetResolver("go.", hostRegistry())

	for _, path := range cfg.Prelude {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: cannot read prelude %s: %v\n", appName, path, err)
			continue
		}
		if _, err := ctx.EvalSource(string(src)); err != nil {
			fmt.Fprintf(os.Stderr, "%s: prelude %s: %v\n", appName, path, err)
		}
	}
	return ctx
}

// hostRegistry exposes a few host values through the foreign symbol
// resolver, e.g. (go.strings/upper "a") or (go.os/getenv "HOME").
func hostRegistry() *mu.RegistryResolver {
	r := mu.NewRegistryResolver()

	r.RegisterFunc("strings", "upper",
		[]mu.Param{{Name: "s", Type: mu.TStr}}, mu.TStr,
		func(_ *mu.ExecutionContext, call *mu.CallArgs) (any, error) {
			s, ok := call.Arg("s")
			if !ok {
				return nil, fmt.Errorf("upper: missing argument")
			}
			str, ok := s.(string)
			if !ok {
				return nil, fmt.Errorf("upper: argument is not a string")
			}
			return strings.ToUpper(str), nil
		})
	r.RegisterFunc("strings", "lower",
		[]mu.Param{{Name: "s", Type: mu.TStr}}, mu.TStr,
		func(_ *mu.ExecutionContext, call *mu.CallArgs) (any, error) {
			s, ok := call.Arg("s")
			if !ok {
				return nil, fmt.Errorf("lower: missing argument")
			}
			str, ok := s.(string)
			if !ok {
				return nil, fmt.Errorf("lower: argument is not a string")
			}
			return strings.ToLower(str), nil
		})

	// No signature: arguments evaluate eagerly.
	r.RegisterInvocable("os", "getenv", mu.InvocableFunc(
		func(args []any, _ map[string]any) (any, error) {
			if len(args) < 1 {
				return nil, fmt.Errorf("getenv: missing variable name")
			}
			name, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("getenv: variable name is not a string")
			}
			return os.Getenv(name), nil
		}), nil)

	return r
}

// -----------------------------------------------------------------------------
// run
// -----------------------------------------------------------------------------

func cmdRun(cfg config, args []string) int {
	tolerant := false
	var file string
	for _, a := range args {
		if a == "-k" {
			tolerant = true
			continue
		}
		if file == "" {
			file = a
		}
	}
	if file == "" {
		fmt.Fprintf(os.Stderr, "usage: %s run <file.mu> [-k]\n", appName)
		return 2
	}

	src, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, file, err)
		return 1
	}

	doc, err := mu.Parse(string(src))
	if err != nil {
		fmt.Fprintln(os.Stderr, red(mu.WrapErrorWithName(err, file, string(src)).Error()))
		return 1
	}

	ctx := newContext(cfg)
	if tolerant {
		failed := 0
		for _, v := range ctx.EvalDocumentTolerant(doc) {
			if e, ok := v.(error); ok {
				fmt.Fprintln(os.Stderr, red(e.Error()))
				failed++
			}
		}
		if failed > 0 {
			return 1
		}
		return 0
	}

	if _, err := ctx.EvalDocument(doc); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}
	return 0
}

// -----------------------------------------------------------------------------
// repl
// -----------------------------------------------------------------------------

func cmdRepl(cfg config) int {
	fmt.Printf("Mu %s REPL\nCtrl+C cancels input, Ctrl+D exits. Type :quit to exit.\n", mu.Version)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, cfg.HistoryFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	ctx := newContext(cfg)

	for {
		code, ok := readByParseProbe(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			return 0
		}

		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			if done := replCommand(ctx, trimmed); done {
				return 0
			}
			continue
		}

		results, err := ctx.EvalSource(code)
		if err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			continue
		}
		for _, v := range results {
			fmt.Println(blue(mu.FormatValue(v)))
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}
}

// replCommand handles ":" commands; returns true when the REPL should exit.
func replCommand(ctx *mu.ExecutionContext, cmd string) bool {
	fields := strings.Fields(cmd)
	switch fields[0] {
	case ":quit":
		return true
	case ":sig":
		if len(fields) < 2 {
			fmt.Println("usage: :sig <name>")
			return false
		}
		fmt.Println(ctx.FunctionSignatureString(fields[1]))
	default:
		fmt.Println("unknown command. Type :quit to exit.")
	}
	return false
}

// readByParseProbe reads lines until the buffer parses or fails with a
// non-incomplete error; incomplete parses prompt for a continuation line.
func readByParseProbe(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if _, perr := mu.ParseWithSpans(src); perr == nil || !mu.IsIncomplete(perr) {
			return src, true
		}
	}
}

// -----------------------------------------------------------------------------
// check
// -----------------------------------------------------------------------------

// cmdCheck parses each file with spans and verifies that rendering the tree
// reproduces the file exactly. A rendering mismatch on a successful parse is
// a parser bug, and is reported as such.
func cmdCheck(files []string) int {
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s check <file.mu> ...\n", appName)
		return 2
	}

	bad := 0
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, file, err)
			bad++
			continue
		}
		doc, err := mu.ParseWithSpans(string(src))
		if err != nil {
			fmt.Fprintln(os.Stderr, red(mu.WrapErrorWithName(err, file, string(src)).Error()))
			bad++
			continue
		}
		if rendered := doc.Render(); rendered != string(src) {
			fmt.Fprintf(os.Stderr, "%s: %s: round-trip mismatch (parser bug)\n", appName, file)
			bad++
			continue
		}
		fmt.Printf("ok\t%s\n", file)
	}
	if bad > 0 {
		return 1
	}
	return 0
}
