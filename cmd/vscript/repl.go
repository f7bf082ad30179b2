package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/visionscript/vscript/pkg/vocab"
)

const (
	banner      = "VisionScript REPL. Type :help for commands, :quit to exit."
	historyFile = ".vscript_history"
	promptMain  = ">>> "
	promptCont  = "... "
)

func cmdRepl(args []string) (ret int) {
	f, err := parseRunFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	rt, cleanup, code := setup(f, os.Stdout)
	if code != 0 {
		return code
	}
	defer cleanup()

	session := rt.NewSession()
	defer session.Close()

	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(complete)

	defer func() {
		if hf, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(hf)
			_ = hf.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if hf, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(hf)
		_ = hf.Close()
	}

	ctx := context.Background()
	for {
		src, ok := readStatement(ln)
		if !ok {
			fmt.Println()
			break
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			if replCommand(session.State().Snapshot(), trimmed) {
				return 0
			}
			continue
		}

		res, err := session.Run(ctx, src, "<repl>")
		if err != nil {
			// Faults are reported and the session carries on.
			reportError(err, true)
			continue
		}
		if res.Exited {
			return 0
		}
		if res.Halted {
			fmt.Println("(halted: guard was not True)")
		}
	}
	return 0
}

// replCommand handles a colon command and reports whether to quit.
func replCommand(snap any, cmd string) bool {
	switch strings.ToLower(cmd) {
	case ":quit", ":q", ":exit":
		return true
	case ":state":
		b, _ := json.MarshalIndent(snap, "", "  ")
		fmt.Println(string(b))
	case ":help":
		fmt.Println(":state  print the session state as JSON")
		fmt.Println(":quit   leave the REPL")
		fmt.Println("Help[] lists every operation.")
	default:
		fmt.Println("unknown command. Type :help for commands.")
	}
	return false
}

// readStatement reads one statement. A line opening a block (If, In, Make)
// is followed by its indented body, ended by an empty line.
func readStatement(ln *liner.State) (string, bool) {
	line, err := ln.Prompt(promptMain)
	if errors.Is(err, io.EOF) {
		return "", false
	}
	if err != nil {
		return "", true
	}
	if !opensBlock(line) {
		return line, true
	}

	var b strings.Builder
	b.WriteString(line)
	for {
		next, err := ln.Prompt(promptCont)
		if err != nil || strings.TrimSpace(next) == "" {
			return b.String(), true
		}
		b.WriteByte('\n')
		b.WriteString(next)
	}
}

func opensBlock(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	for _, kw := range []string{vocab.If + "[", vocab.In + "[", vocab.Make + " ", vocab.Make + "["} {
		if strings.HasPrefix(trimmed, kw) {
			return true
		}
	}
	return false
}

// complete offers operation names matching the word under the cursor.
func complete(line string) []string {
	start := strings.LastIndexAny(line, "[, ") + 1
	prefix := line[start:]
	if prefix == "" {
		return nil
	}
	var out []string
	for _, w := range vocab.Words() {
		if strings.HasPrefix(w, prefix) {
			out = append(out, line[:start]+w)
		}
	}
	return out
}
