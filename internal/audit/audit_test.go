package audit

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/ai"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/reason"
)

func sampleAnswer() *reason.Answer {
	return &reason.Answer{
		ID:       "ans_test",
		Question: "What is the KYC status of Client A?",
		Status:   reason.StatusAnswerable,
		Text:     "Client A is verified [F1].",
		Evidence: []kg.Fact{
			{Subject: "Client_A", Predicate: "kycStatus", Value: kg.String("verified"), Sources: []string{"seed"}},
		},
		Template:     "client_kyc_exposure",
		Bindings:     map[string]string{"client": "Client_A"},
		Metrics:      ai.ModelMetrics{InputTokens: 100, OutputTokens: 20, TotalTokens: 120},
		RetrievalMs:  3,
		GenerationMs: 250,
	}
}

func TestNewEvent(t *testing.T) {
	ans := sampleAnswer()

	ev, err := NewEvent(ans)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	if !strings.HasPrefix(ev.ID, "evt_") {
		t.Fatalf("event id = %q, want evt_ prefix", ev.ID)
	}
	if ev.Timestamp.IsZero() {
		t.Fatalf("timestamp is zero")
	}
	if ev.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp location = %v, want UTC", ev.Timestamp.Location())
	}
	if ev.AnswerID != "ans_test" {
		t.Fatalf("answer id = %q", ev.AnswerID)
	}
	if ev.Question != ans.Question || ev.Answer != ans.Text || ev.Status != ans.Status {
		t.Fatalf("event = %+v does not mirror the answer", ev)
	}
	if ev.Template != "client_kyc_exposure" || ev.Bindings["client"] != "Client_A" {
		t.Fatalf("attribution = %q %v", ev.Template, ev.Bindings)
	}
	if !reflect.DeepEqual(ev.Evidence, ans.Evidence) {
		t.Fatalf("evidence = %+v", ev.Evidence)
	}
	if ev.Metrics.TotalTokens != 120 || ev.GenerationMs != 250 {
		t.Fatalf("metrics not carried: %+v", ev)
	}
}

func TestJSONLRecorder_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	rec := NewJSONLRecorder(path)

	ids := make([]string, 0, 3)
	for range 3 {
		ev, err := NewEvent(sampleAnswer())
		if err != nil {
			t.Fatalf("NewEvent() error = %v", err)
		}
		if err := rec.Record(context.Background(), ev); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		ids = append(ids, ev.ID)
	}

	events, err := ReadLogFile(path)
	if err != nil {
		t.Fatalf("ReadLogFile() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	for i, ev := range events {
		if ev.ID != ids[i] {
			t.Fatalf("event %d id = %q, want %q", i, ev.ID, ids[i])
		}
		if ev.Status != reason.StatusAnswerable {
			t.Fatalf("event %d status = %s", i, ev.Status)
		}
		if len(ev.Evidence) != 1 || ev.Evidence[0].Subject != "Client_A" {
			t.Fatalf("event %d evidence = %+v", i, ev.Evidence)
		}
	}
}

func TestReadLog_SkipsPartialTrailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	rec := NewJSONLRecorder(path)

	for range 2 {
		ev, err := NewEvent(sampleAnswer())
		if err != nil {
			t.Fatalf("NewEvent() error = %v", err)
		}
		if err := rec.Record(context.Background(), ev); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	// Simulate a crash mid-append.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	if _, err := f.WriteString(`{"id":"evt_partial","quest`); err != nil {
		t.Fatalf("failed to write partial line: %v", err)
	}
	f.Close()

	events, err := ReadLogFile(path)
	if err != nil {
		t.Fatalf("ReadLogFile() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 with the partial line dropped", len(events))
	}
}

func TestReadLog_FailsOnCorruptMiddleLine(t *testing.T) {
	log := `{"id":"evt_1","question":"q","status":"UNKNOWN"}
not json at all
{"id":"evt_3","question":"q","status":"UNKNOWN"}
`
	_, err := ReadLog(strings.NewReader(log))
	if err == nil {
		t.Fatalf("expected decode error for corrupt middle line")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error = %v, want line 2 mentioned", err)
	}
}

func TestReadLogFile_MissingIsEmpty(t *testing.T) {
	events, err := ReadLogFile(filepath.Join(t.TempDir(), "absent.jsonl"))
	if err != nil {
		t.Fatalf("ReadLogFile() error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
}

func TestSummarize(t *testing.T) {
	events := []Event{
		{Status: reason.StatusAnswerable, Metrics: ai.ModelMetrics{InputTokens: 100, OutputTokens: 30, TotalTokens: 130}},
		{Status: reason.StatusAnswerable, Metrics: ai.ModelMetrics{InputTokens: 80, OutputTokens: 20, TotalTokens: 100}},
		{Status: reason.StatusUnknown},
		{Status: reason.StatusInconclusive},
	}

	got := Summarize(events)
	want := Summary{
		Events: 4,
		ByStatus: map[string]int{
			"ANSWERABLE":   2,
			"UNKNOWN":      1,
			"INCONCLUSIVE": 1,
		},
		ModelCalls:   2,
		InputTokens:  180,
		OutputTokens: 50,
		TotalTokens:  230,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Summarize() = %+v, want %+v", got, want)
	}
}

func TestMultiRecorder_FansOut(t *testing.T) {
	dir := t.TempDir()
	a := NewJSONLRecorder(filepath.Join(dir, "a.jsonl"))
	b := NewJSONLRecorder(filepath.Join(dir, "b.jsonl"))
	multi := MultiRecorder{a, nil, b}

	ev, err := NewEvent(sampleAnswer())
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if err := multi.Record(context.Background(), ev); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	for _, path := range []string{filepath.Join(dir, "a.jsonl"), filepath.Join(dir, "b.jsonl")} {
		events, err := ReadLogFile(path)
		if err != nil {
			t.Fatalf("ReadLogFile(%s) error = %v", path, err)
		}
		if len(events) != 1 || events[0].ID != ev.ID {
			t.Fatalf("log %s = %+v, want the recorded event", path, events)
		}
	}
}
