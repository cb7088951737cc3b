package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Policy controls how calls are paced and retried.
type Policy struct {
	MaxAttempts int           // total tries per prompt, at least 1
	BaseDelay   time.Duration // first backoff; doubles on each retry
	MinInterval time.Duration // minimum spacing between calls; 0 disables pacing
}

// DefaultPolicy mirrors the rate the hosted service tolerates for one caller.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MinInterval: 500 * time.Millisecond,
	}
}

// Retrying wraps a Service with pacing and exponential backoff.
type Retrying struct {
	svc     Service
	policy  Policy
	limiter *rate.Limiter
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps svc. A nil logger uses slog.Default().
func NewRetrying(svc Service, p Policy, logger *slog.Logger) *Retrying {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retrying{svc: svc, policy: p, logger: logger, sleep: sleepCtx}
	if p.MinInterval > 0 {
		r.limiter = rate.NewLimiter(rate.Every(p.MinInterval), 1)
	}
	return r
}

// Complete calls the wrapped service until it succeeds, the attempts run
// out, or the service reports ErrUnavailable.
func (r *Retrying) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		text, err := r.svc.Complete(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, ErrUnavailable) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err

		if attempt == r.policy.MaxAttempts-1 {
			break
		}
		wait := r.policy.BaseDelay << attempt
		r.logger.Warn("model call failed, retrying",
			"attempt", attempt+1, "max", r.policy.MaxAttempts, "wait", wait, "err", err)
		if err := r.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("after %d attempts: %w", r.policy.MaxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Call runs prompt through svc and folds the outcome into a tagged Response.
// A nil svc is treated as unavailable.
func Call(ctx context.Context, svc Service, prompt string) Response {
	if svc == nil {
		return Failure(KindUnavailable, ErrUnavailable)
	}
	text, err := svc.Complete(ctx, prompt)
	switch {
	case errors.Is(err, ErrUnavailable):
		return Failure(KindUnavailable, err)
	case err != nil:
		return Failure(KindCallFailed, err)
	case strings.TrimSpace(text) == "":
		return Failure(KindFormatIssue, errors.New("empty response"))
	}
	return Text(text)
}
