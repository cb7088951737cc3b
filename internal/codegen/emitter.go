// Package codegen writes placeholder automation scaffolding for a step
// vocabulary: step definitions, a page object and a project manifest per
// target language.
package codegen

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/sync/errgroup"

	"github.com/chriserin/bddgen/internal/model"
)

// Project is the project name written into generated manifests.
const Project = "bdd-automation-project"

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// Target is one generated file.
type Target struct {
	Language string
	File     string
	Prompt   string   // template name under prompts/
	Fences   []string // fence languages tried in order
}

var targets = []Target{
	{"javascript", "steps.js", "js_steps.tmpl", []string{"javascript", "js"}},
	{"javascript", "pages.js", "js_pages.tmpl", []string{"javascript", "js"}},
	{"javascript", "package.json", "js_manifest.tmpl", []string{"json"}},
	{"java", "StepDefinitions.java", "java_steps.tmpl", []string{"java"}},
	{"java", "ApplicationPage.java", "java_pages.tmpl", []string{"java"}},
	{"java", "pom.xml", "java_manifest.tmpl", []string{"xml"}},
	{"python", "steps.py", "python_steps.tmpl", []string{"python"}},
	{"python", "pages.py", "python_pages.tmpl", []string{"python"}},
	{"python", "requirements.txt", "python_manifest.tmpl", []string{"txt", ""}},
}

// Targets returns the files generated for the given languages, in a fixed
// order. Unknown languages contribute nothing.
func Targets(languages []string) []Target {
	want := map[string]bool{}
	for _, l := range languages {
		want[l] = true
	}
	var out []Target
	for _, t := range targets {
		if want[t.Language] {
			out = append(out, t)
		}
	}
	return out
}

// Emitter generates automation files through a model service. The service
// should carry its own pacing; Emitter bounds concurrency only.
type Emitter struct {
	svc       model.Service
	dir       string
	languages []string
	logger    *slog.Logger
	limit     int
}

// New returns an emitter writing under dir/<language>/.
func New(svc model.Service, dir string, languages []string, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{svc: svc, dir: dir, languages: languages, logger: logger, limit: 3}
}

type promptData struct {
	Steps   []string
	Project string
}

// Emit writes every target for the configured languages. A file that fails is
// logged and skipped; its error is joined into the returned error and the
// paths of the files that were written are still returned.
func (e *Emitter) Emit(ctx context.Context, steps []string, progress func(done, total int)) ([]string, error) {
	jobs := Targets(e.languages)
	paths := make([]string, len(jobs))
	errs := make([]error, len(jobs))

	var mu sync.Mutex
	done := 0

	var g errgroup.Group
	g.SetLimit(e.limit)
	for i, job := range jobs {
		g.Go(func() error {
			path, err := e.generate(ctx, job, steps)
			if err != nil {
				e.logger.Warn("automation file skipped", "language", job.Language, "file", job.File, "err", err)
				errs[i] = fmt.Errorf("%s/%s: %w", job.Language, job.File, err)
			} else {
				e.logger.Debug("automation file written", "path", path)
				paths[i] = path
			}

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			if progress != nil {
				progress(n, len(jobs))
			}
			return nil
		})
	}
	_ = g.Wait()

	var written []string
	for _, p := range paths {
		if p != "" {
			written = append(written, p)
		}
	}
	return written, errors.Join(errs...)
}

func (e *Emitter) generate(ctx context.Context, t Target, steps []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var prompt bytes.Buffer
	if err := prompts.ExecuteTemplate(&prompt, t.Prompt, promptData{Steps: steps, Project: Project}); err != nil {
		return "", fmt.Errorf("building prompt: %w", err)
	}

	resp := model.Call(ctx, e.svc, prompt.String())
	if resp.Failed() {
		if resp.Err != nil {
			return "", fmt.Errorf("%s: %w", resp.Kind, resp.Err)
		}
		return "", errors.New(resp.Kind.String())
	}

	body := Extract(resp.Text, t.Fences...)
	if body == "" {
		return "", errors.New("empty file")
	}

	dir := filepath.Join(e.dir, t.Language)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, t.File)
	if err := os.WriteFile(path, []byte(body+"\n"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Extract returns the first fenced block found for any of langs, or the whole
// trimmed text when none is fenced.
func Extract(text string, langs ...string) string {
	for _, l := range langs {
		if body, ok := model.ExtractFence(text, l); ok {
			return body
		}
	}
	return strings.TrimSpace(text)
}
