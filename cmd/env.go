package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chriserin/bddgen/internal/codegen"
	"github.com/chriserin/bddgen/internal/config"
	"github.com/chriserin/bddgen/internal/db"
	"github.com/chriserin/bddgen/internal/model"
	"github.com/chriserin/bddgen/internal/pipeline"
	"github.com/chriserin/bddgen/internal/ui"
)

const (
	workDir = "bdd"
	dbPath  = "bdd/bddgen.db"

	pingTimeout = 10 * time.Second
)

var errNotInitialized = errors.New("run `bddgen init` first")

// Env is what every generating command needs. Tests build it directly.
type Env struct {
	Config *config.Config
	Model  model.Service // nil when unavailable
	Logger *slog.Logger
}

// loadConfig reads path, or bddgen.yml in the working directory when path is
// empty, and overlays the environment.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(".")
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

func loadEnv(ctx context.Context) (Env, error) {
	cfg, err := loadConfig(configFlag)
	if err != nil {
		return Env{}, err
	}

	logger := slog.Default()
	env := Env{Config: cfg, Logger: logger}
	if offlineFlag {
		logger.Info("offline, model disabled")
		return env, nil
	}

	env.Model, err = connect(ctx, model.GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model}, model.Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MinInterval: cfg.MinInterval,
	}, logger)
	if err != nil {
		return Env{}, err
	}
	return env, nil
}

// connect returns the retrying model service, or nil when the key is missing
// or the service rejects it.
func connect(ctx context.Context, gc model.GeminiConfig, p model.Policy, logger *slog.Logger) (model.Service, error) {
	gemini, err := model.NewGemini(ctx, gc)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = gemini.Ping(pingCtx)
		cancel()
	}
	if errors.Is(err, model.ErrUnavailable) {
		logger.Warn("model unavailable, continuing with degraded output", "env", config.EnvAPIKey, "err", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.NewRetrying(gemini, p, logger), nil
}

func openStore() (*db.Store, func(), error) {
	if _, err := os.Stat(workDir); os.IsNotExist(err) {
		return nil, nil, errNotInitialized
	}
	sqlDB, err := db.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return db.NewStore(sqlDB), func() { sqlDB.Close() }, nil
}

// newRunner wires a runner that reports progress to w.
func newRunner(w io.Writer, env Env, store *db.Store, rc pipeline.RunContext) (*pipeline.Runner, *ui.Progress) {
	cfg := env.Config
	progress := ui.NewProgress(w)

	rc.OutputDir = cfg.OutputDir
	rc.Feature = cfg.Feature
	rc.Precondition = cfg.Precondition
	rc.Model = env.Model
	rc.Logger = env.Logger
	rc.Store = store
	rc.OnEvent = func(s pipeline.State, pct int, msg string) {
		progress.Update(s.String(), pct, msg)
	}
	if env.Model != nil {
		rc.Emitter = codegen.New(env.Model, filepath.Join(cfg.OutputDir, pipeline.ArtifactsDir), cfg.Languages, env.Logger)
	}
	return pipeline.NewRunner(rc), progress
}

func report(w io.Writer, res *pipeline.Result) {
	if res.FeaturePath != "" {
		ui.NewLine(w, res.FeaturePath)
	}
	for _, f := range res.Files {
		ui.NewLine(w, f)
	}
	for _, warning := range res.Warnings {
		ui.WarnLine(w, warning)
	}
	ui.SummaryLine(w, res.RunID, res.Scenarios, len(res.Files), string(res.Outcome))
}
