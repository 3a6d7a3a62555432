package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pkruk/accident-clerk/internal/coerce"
	"github.com/pkruk/accident-clerk/internal/domain"
)

type queueCaller struct {
	responses []string
	errs      []error
	prompts   []string
}

func (q *queueCaller) GenerateJSON(_ context.Context, req Request) (string, error) {
	q.prompts = append(q.prompts, req.User)
	i := len(q.prompts) - 1
	var err error
	if i < len(q.errs) {
		err = q.errs[i]
	}
	resp := ""
	if i < len(q.responses) {
		resp = q.responses[i]
	}
	return resp, err
}

func decodeInto(out *map[string]any) func(string) error {
	return func(raw string) error {
		return coerce.Decode(raw, coerce.Options{}, out)
	}
}

func TestExecutorFirstAttemptSuccess(t *testing.T) {
	q := &queueCaller{responses: []string{`{"ok": true}`}}
	e := NewExecutor(q)

	var out map[string]any
	m, err := e.Run(context.Background(), "formal_analysis", Request{User: "prompt"}, decodeInto(&out))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Attempts != 1 || m.ContentRetries != 0 {
		t.Fatalf("metrics = %+v", m)
	}
	if len(q.prompts) != 1 || !strings.Contains(q.prompts[0], "prompt") {
		t.Fatalf("prompts = %v", q.prompts)
	}
}

func TestExecutorContentRetryCarriesFeedback(t *testing.T) {
	q := &queueCaller{responses: []string{"to nie jest json", `{"ok": true}`}}
	e := NewExecutor(q)

	var out map[string]any
	m, err := e.Run(context.Background(), "discrepancy", Request{User: "prompt"}, decodeInto(&out))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Attempts != 2 || m.ContentRetries != 1 {
		t.Fatalf("metrics = %+v", m)
	}
	if !strings.Contains(q.prompts[1], "nie przeszła walidacji") {
		t.Fatalf("second prompt missing feedback: %q", q.prompts[1])
	}
}

func TestExecutorEmptyResponseRetries(t *testing.T) {
	q := &queueCaller{responses: []string{"", `{"ok": true}`}}
	e := NewExecutor(q)

	var out map[string]any
	m, err := e.Run(context.Background(), "opinion", Request{User: "prompt"}, decodeInto(&out))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.ContentRetries != 1 {
		t.Fatalf("metrics = %+v", m)
	}
	if !strings.Contains(q.prompts[1], "pusta") {
		t.Fatalf("second prompt missing feedback: %q", q.prompts[1])
	}
}

func TestExecutorClientErrorFailsFast(t *testing.T) {
	q := &queueCaller{
		responses: []string{""},
		errs:      []error{errors.New("status code: 400, invalid request")},
	}
	e := NewExecutor(q)

	var out map[string]any
	_, err := e.Run(context.Background(), "gaps", Request{User: "prompt"}, decodeInto(&out))
	if err == nil {
		t.Fatal("want error")
	}
	var ese *domain.ExternalServiceError
	if !errors.As(err, &ese) {
		t.Fatalf("want ExternalServiceError, got %v", err)
	}
	if len(q.prompts) != 1 {
		t.Fatalf("client error must not be retried, got %d calls", len(q.prompts))
	}
}

func TestExecutorExhaustsContentRetries(t *testing.T) {
	q := &queueCaller{responses: []string{"x", "y", "z"}}
	e := NewExecutor(q)

	var out map[string]any
	m, err := e.Run(context.Background(), "formal_analysis", Request{User: "prompt"}, decodeInto(&out))
	if err == nil {
		t.Fatal("want error after three bad responses")
	}
	var sv *coerce.SchemaViolation
	if !errors.As(err, &sv) {
		t.Fatalf("want SchemaViolation, got %v", err)
	}
	if m.Attempts != 3 || m.ContentRetries != 2 {
		t.Fatalf("metrics = %+v", m)
	}
}
