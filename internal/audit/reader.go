package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/logger"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/reason"
)

// ReadLog decodes a JSON Lines audit log. A partial trailing line, the
// footprint of a crash mid-append, is skipped; malformed lines anywhere
// else fail the read.
func ReadLog(r io.Reader) ([]Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lines := make([][]byte, 0)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	events := make([]Event, 0, len(lines))
	for i, line := range lines {
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			if i == len(lines)-1 {
				logger.Warn("[Audit] Skipping partial trailing line", "line", i+1)
				break
			}
			return nil, fmt.Errorf("failed to decode audit log: line %d: %w", i+1, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// ReadLogFile reads the audit log at path. A missing file yields an
// empty log, not an error.
func ReadLogFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()
	return ReadLog(f)
}

// Summary aggregates an audit log for reporting.
type Summary struct {
	Events   int            `json:"events"`
	ByStatus map[string]int `json:"by_status"`

	// ModelCalls counts events whose question reached the completion
	// service, which is exactly the ANSWERABLE ones.
	ModelCalls int `json:"model_calls"`

	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Summarize folds events into per-status counts and token totals.
func Summarize(events []Event) Summary {
	s := Summary{ByStatus: make(map[string]int)}
	for i := range events {
		ev := &events[i]
		s.Events++
		s.ByStatus[string(ev.Status)]++
		if ev.Status == reason.StatusAnswerable {
			s.ModelCalls++
		}
		s.InputTokens += ev.Metrics.InputTokens
		s.OutputTokens += ev.Metrics.OutputTokens
		s.TotalTokens += ev.Metrics.TotalTokens
	}
	return s
}
