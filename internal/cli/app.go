package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkruk/accident-clerk/internal/discrepancy"
	"github.com/pkruk/accident-clerk/internal/docintel"
	"github.com/pkruk/accident-clerk/internal/formal"
	"github.com/pkruk/accident-clerk/internal/gaps"
	"github.com/pkruk/accident-clerk/internal/llm"
	"github.com/pkruk/accident-clerk/internal/ocr"
	"github.com/pkruk/accident-clerk/internal/opinion"
	"github.com/pkruk/accident-clerk/internal/pipeline"
	"github.com/pkruk/accident-clerk/internal/store"
)

// app bundles the wired collaborators a command needs. Commands that only
// touch the store (case intake, draft) use openStore directly; the analysis
// commands build the full stack.
type app struct {
	cfg   Config
	store *store.SQLiteStore
	exec  *llm.Executor
}

func openStore(cfg Config) (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(cfg.StorePath)
}

func openApp() (*app, error) {
	cfg := loadConfig()
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	caller, err := llm.NewCaller(cfg.llmConfig())
	if err != nil {
		st.Close()
		return nil, err
	}
	return &app{cfg: cfg, store: st, exec: llm.NewExecutor(caller)}, nil
}

func (a *app) Close() { a.store.Close() }

func newOCRService(cfg Config, st *store.SQLiteStore) *ocr.Service {
	intel := docintel.New(cfg.DocIntel.Endpoint, cfg.DocIntel.Key, cfg.DocIntel.Model)
	return ocr.NewService(st, intel)
}

func (a *app) ocrService() *ocr.Service { return newOCRService(a.cfg, a.store) }

func (a *app) discrepancyService() *discrepancy.Service {
	return discrepancy.NewService(a.store, a.exec)
}

func (a *app) formalService() *formal.Service { return formal.NewService(a.store, a.exec) }

func (a *app) gapsService() *gaps.Service { return gaps.NewService(a.store, a.exec) }

func (a *app) opinionService() *opinion.Service { return opinion.NewService(a.store, a.exec) }

func (a *app) runner() *pipeline.Runner {
	return pipeline.New(
		a.store,
		a.ocrService(),
		a.discrepancyService(),
		a.formalService(),
		a.gapsService(),
		a.opinionService(),
	)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
