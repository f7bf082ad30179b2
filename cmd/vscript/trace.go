package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/visionscript/vscript/pkg/diagnostics"
)

func cmdTrace(args []string) int {
	var file string
	textOutput := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--json":
			textOutput = false
		case "--text":
			textOutput = true
		default:
			if !strings.HasPrefix(args[i], "-") {
				file = args[i]
			}
		}
	}

	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: vscript trace <file.jsonl> [--json|--text]")
		return 1
	}

	f, err := os.Open(file)
	if err != nil {
		printDiag(diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("cannot read file: %s", file), nil, ""), false)
		return 1
	}
	defer f.Close()

	summary := computeTraceSummary(f)

	if textOutput {
		printTraceSummaryText(os.Stdout, summary)
	} else {
		b, _ := json.Marshal(summary)
		fmt.Println(string(b))
	}
	return 0
}

// TraceSummary aggregates a JSONL trace written by run --trace.
type TraceSummary struct {
	RunID       string         `json:"runId"`
	TotalEvents int            `json:"totalEvents"`
	Statements  int            `json:"statements"`
	Operations  int            `json:"operations"`
	OpsByName   map[string]int `json:"opsByName"`
	Loops       int            `json:"loops"`
	FnCalls     int            `json:"fnCalls"`
	Halted      bool           `json:"halted"`
	StartTime   string         `json:"startTime,omitempty"`
	EndTime     string         `json:"endTime,omitempty"`
	DurationMs  float64        `json:"durationMs"`
}

type traceEvent struct {
	Event string            `json:"event"`
	RunID string            `json:"runId"`
	TS    string            `json:"ts"`
	Data  map[string]string `json:"data,omitempty"`
}

func computeTraceSummary(r io.Reader) *TraceSummary {
	summary := &TraceSummary{
		OpsByName: make(map[string]int),
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event traceEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip invalid lines
		}

		summary.TotalEvents++
		if summary.RunID == "" {
			summary.RunID = event.RunID
		}

		switch event.Event {
		case "run_start":
			if summary.StartTime == "" {
				summary.StartTime = event.TS
			}
		case "run_end":
			summary.EndTime = event.TS
		case "stmt_start":
			summary.Statements++
		case "op_start":
			summary.Operations++
			if name := event.Data["op"]; name != "" {
				summary.OpsByName[name]++
			}
		case "loop_start":
			summary.Loops++
		case "fn_call_start":
			summary.FnCalls++
		case "halt":
			summary.Halted = true
		}
	}

	if summary.StartTime != "" && summary.EndTime != "" {
		start, err1 := parseTime(summary.StartTime)
		end, err2 := parseTime(summary.EndTime)
		if err1 == nil && err2 == nil {
			summary.DurationMs = float64(end.Sub(start).Milliseconds())
		}
	}

	return summary
}

func printTraceSummaryText(w io.Writer, s *TraceSummary) {
	fmt.Fprintf(w, "Run: %s\n", s.RunID)
	fmt.Fprintf(w, "Events: %d\n", s.TotalEvents)
	fmt.Fprintf(w, "Statements: %d\n", s.Statements)
	fmt.Fprintf(w, "Operations: %d\n", s.Operations)
	names := make([]string, 0, len(s.OpsByName))
	for name := range s.OpsByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %d\n", name, s.OpsByName[name])
	}
	fmt.Fprintf(w, "Loops: %d, function calls: %d\n", s.Loops, s.FnCalls)
	if s.Halted {
		fmt.Fprintln(w, "Halted by a False guard")
	}
	if s.DurationMs > 0 {
		fmt.Fprintf(w, "Duration: %.0fms\n", s.DurationMs)
	}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %s", s)
}
