// Package pipeline chains the analysis stages for one case and owns the
// Case status transitions. Stages run strictly in order; a skipped or
// partial stage lets the chain proceed, a failed stage halts it after the
// retry budget is spent.
package pipeline

import (
	"context"
	"errors"
	"log"

	"github.com/cenkalti/backoff/v5"

	"github.com/pkruk/accident-clerk/internal/coerce"
	"github.com/pkruk/accident-clerk/internal/discrepancy"
	"github.com/pkruk/accident-clerk/internal/domain"
	"github.com/pkruk/accident-clerk/internal/formal"
	"github.com/pkruk/accident-clerk/internal/gaps"
	"github.com/pkruk/accident-clerk/internal/ocr"
	"github.com/pkruk/accident-clerk/internal/opinion"
	"github.com/pkruk/accident-clerk/internal/store"
)

// StageFunc runs one stage and reports its terminal status.
type StageFunc func(ctx context.Context, caseID string) (string, error)

type Stage struct {
	Name string
	Run  StageFunc
}

type Runner struct {
	store    store.Store
	stages   []Stage
	maxTries uint
}

func New(st store.Store, ocrSvc *ocr.Service, disc *discrepancy.Service, form *formal.Service, gapsSvc *gaps.Service, op *opinion.Service) *Runner {
	stages := []Stage{
		{Name: "ocr", Run: func(ctx context.Context, id string) (string, error) {
			r, err := ocrSvc.ProcessAllDocuments(ctx, id)
			if err != nil {
				return "", err
			}
			if r.Status == domain.StageFailed {
				return r.Status, errors.New(r.Message)
			}
			return r.Status, nil
		}},
		{Name: "discrepancy_analysis", Run: func(ctx context.Context, id string) (string, error) {
			r, err := disc.Detect(ctx, id)
			return r.Status, err
		}},
		{Name: "formal_analysis", Run: func(ctx context.Context, id string) (string, error) {
			r, err := form.Evaluate(ctx, id)
			return r.Status, err
		}},
		{Name: "documentation_gaps", Run: func(ctx context.Context, id string) (string, error) {
			r, err := gapsSvc.Advise(ctx, id)
			return r.Status, err
		}},
		{Name: "opinion", Run: func(ctx context.Context, id string) (string, error) {
			r, err := op.Synthesize(ctx, id)
			return r.Status, err
		}},
	}
	return &Runner{store: st, stages: stages, maxTries: 3}
}

// Run executes the full chain for one case.
func (r *Runner) Run(ctx context.Context, caseID string) error {
	if _, err := r.store.GetCase(ctx, caseID); err != nil {
		return err
	}
	if err := r.store.SetCaseStatus(ctx, caseID, domain.CaseProcessing, ""); err != nil {
		return err
	}

	for _, stage := range r.stages {
		op := func() (string, error) {
			status, err := stage.Run(ctx, caseID)
			if err != nil {
				if isPermanent(err) {
					return "", backoff.Permanent(err)
				}
				return "", err
			}
			return status, nil
		}
		status, err := backoff.Retry(ctx, op,
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithMaxTries(r.maxTries),
		)
		if err != nil {
			failure := &domain.PipelineFailure{Stage: stage.Name, Err: err}
			if serr := r.store.SetCaseStatus(ctx, caseID, domain.CaseFailed, failure.Error()); serr != nil {
				log.Printf("[case %s] could not record failure: %v", caseID, serr)
			}
			return failure
		}
		log.Printf("[case %s] stage %s: %s", caseID, stage.Name, status)
	}

	return r.store.SetCaseStatus(ctx, caseID, domain.CaseCompleted, "")
}

// isPermanent marks errors retrying cannot fix: missing entities, rejected
// input, and model output that failed every repair.
func isPermanent(err error) bool {
	if errors.Is(err, domain.ErrNotFound) {
		return true
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return true
	}
	var sv *coerce.SchemaViolation
	return errors.As(err, &sv)
}
