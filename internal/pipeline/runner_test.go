package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkruk/accident-clerk/internal/coerce"
	"github.com/pkruk/accident-clerk/internal/domain"
	"github.com/pkruk/accident-clerk/internal/store"
)

func newFixture(t *testing.T) (*store.SQLiteStore, domain.Case) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "clerk.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	c := domain.Case{}
	if err := st.CreateCase(context.Background(), &c); err != nil {
		t.Fatal(err)
	}
	return st, c
}

func stageReturning(status string, err error) StageFunc {
	return func(context.Context, string) (string, error) { return status, err }
}

func TestRunCompletesChain(t *testing.T) {
	st, c := newFixture(t)
	var order []string
	r := &Runner{store: st, maxTries: 3, stages: []Stage{
		{Name: "ocr", Run: func(ctx context.Context, id string) (string, error) {
			order = append(order, "ocr")
			return domain.StageCompleted, nil
		}},
		{Name: "discrepancy_analysis", Run: func(ctx context.Context, id string) (string, error) {
			order = append(order, "discrepancy_analysis")
			return domain.StageSkipped, nil
		}},
		{Name: "opinion", Run: func(ctx context.Context, id string) (string, error) {
			order = append(order, "opinion")
			return domain.StageCompleted, nil
		}},
	}}

	if err := r.Run(context.Background(), c.ID); err != nil {
		t.Fatal(err)
	}
	if strings.Join(order, ",") != "ocr,discrepancy_analysis,opinion" {
		t.Fatalf("order = %v", order)
	}
	got, _ := st.GetCase(context.Background(), c.ID)
	if got.Status != domain.CaseCompleted || got.ErrorMessage != "" {
		t.Fatalf("case = %q / %q", got.Status, got.ErrorMessage)
	}
}

func TestRunSkippedStageDoesNotHaltChain(t *testing.T) {
	st, c := newFixture(t)
	reached := false
	r := &Runner{store: st, maxTries: 3, stages: []Stage{
		{Name: "discrepancy_analysis", Run: stageReturning(domain.StageSkipped, nil)},
		{Name: "formal_analysis", Run: func(ctx context.Context, id string) (string, error) {
			reached = true
			return domain.StageCompleted, nil
		}},
	}}
	if err := r.Run(context.Background(), c.ID); err != nil {
		t.Fatal(err)
	}
	if !reached {
		t.Fatal("chain must proceed past a skipped stage")
	}
}

func TestRunRetriesTransientFailure(t *testing.T) {
	st, c := newFixture(t)
	attempts := 0
	r := &Runner{store: st, maxTries: 3, stages: []Stage{
		{Name: "ocr", Run: func(ctx context.Context, id string) (string, error) {
			attempts++
			if attempts < 3 {
				return "", errors.New("temporary backend hiccup")
			}
			return domain.StageCompleted, nil
		}},
	}}
	if err := r.Run(context.Background(), c.ID); err != nil {
		t.Fatal(err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	got, _ := st.GetCase(context.Background(), c.ID)
	if got.Status != domain.CaseCompleted {
		t.Fatalf("status = %q", got.Status)
	}
}

func TestRunExhaustedRetriesFailCase(t *testing.T) {
	st, c := newFixture(t)
	attempts := 0
	r := &Runner{store: st, maxTries: 3, stages: []Stage{
		{Name: "formal_analysis", Run: func(ctx context.Context, id string) (string, error) {
			attempts++
			return "", errors.New("backend down")
		}},
		{Name: "opinion", Run: func(ctx context.Context, id string) (string, error) {
			t.Fatal("later stage must not run after a failure")
			return "", nil
		}},
	}}

	err := r.Run(context.Background(), c.ID)
	if err == nil {
		t.Fatal("want failure")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	stage, ok := domain.StageFromError(err)
	if !ok || stage != "formal_analysis" {
		t.Fatalf("stage from error = %q (%v)", stage, ok)
	}
	got, _ := st.GetCase(context.Background(), c.ID)
	if got.Status != domain.CaseFailed {
		t.Fatalf("status = %q", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "formal_analysis failed:") {
		t.Fatalf("error message = %q", got.ErrorMessage)
	}
}

func TestRunPermanentErrorShortCircuits(t *testing.T) {
	st, c := newFixture(t)

	cases := []struct {
		name string
		err  error
	}{
		{"validation", &domain.ValidationError{Reason: "Plik jest pusty"}},
		{"schema", &coerce.SchemaViolation{Reason: "unrepairable"}},
		{"not found", domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			attempts := 0
			r := &Runner{store: st, maxTries: 3, stages: []Stage{
				{Name: "ocr", Run: func(ctx context.Context, id string) (string, error) {
					attempts++
					return "", tc.err
				}},
			}}
			if err := r.Run(context.Background(), c.ID); err == nil {
				t.Fatal("want failure")
			}
			if attempts != 1 {
				t.Fatalf("permanent error retried %d times", attempts)
			}
		})
	}
}

func TestRunUnknownCase(t *testing.T) {
	st, _ := newFixture(t)
	r := &Runner{store: st, maxTries: 3}
	if err := r.Run(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
