package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dubflow/internal/logging"
	"dubflow/internal/services"
	"dubflow/internal/stage"
)

// Kind identifies a heavyweight model backend.
type Kind string

const (
	KindSeparation  Kind = "separation"
	KindWhisperX    Kind = "whisperx"
	KindDiarization Kind = "diarization"
	KindFunASR      Kind = "funasr"
	KindXTTS        Kind = "xtts"
	KindCosyVoice   Kind = "cosyvoice"
)

// Kinds lists every backend the registry tracks.
var Kinds = []Kind{KindSeparation, KindWhisperX, KindDiarization, KindFunASR, KindXTTS, KindCosyVoice}

// Preparer loads a single backend into memory.
type Preparer interface {
	Prepare(ctx context.Context, kind Kind) error
}

// Releaser frees every loaded backend.
type Releaser interface {
	Release(ctx context.Context) error
}

// Registry tracks which backends are ready and prepares missing ones. One
// registry is shared by every batch in the process.
type Registry struct {
	preparer Preparer
	releaser Releaser
	logger   *slog.Logger

	initMu sync.Mutex

	mu    sync.RWMutex
	ready map[Kind]bool
}

// NewRegistry constructs a registry with every backend marked not ready.
func NewRegistry(preparer Preparer, releaser Releaser, logger *slog.Logger) *Registry {
	ready := make(map[Kind]bool, len(Kinds))
	for _, kind := range Kinds {
		ready[kind] = false
	}
	return &Registry{
		preparer: preparer,
		releaser: releaser,
		logger:   logging.NewComponentLogger(logger, "backend"),
		ready:    ready,
	}
}

// Required returns the backends needed for the chosen engines, in a stable
// order. Separation is always required. EdgeTTS needs no local backend and
// FunASR ignores the diarization flag.
func Required(tts stage.TTSMethod, asr stage.ASRMethod, diarization bool) []Kind {
	kinds := []Kind{KindSeparation}
	switch asr {
	case stage.ASRWhisperX:
		kinds = append(kinds, KindWhisperX)
		if diarization {
			kinds = append(kinds, KindDiarization)
		}
	case stage.ASRFunASR:
		kinds = append(kinds, KindFunASR)
	}
	switch tts {
	case stage.TTSXTTS:
		kinds = append(kinds, KindXTTS)
	case stage.TTSCosyVoice:
		kinds = append(kinds, KindCosyVoice)
	}
	return kinds
}

// EnsureReady prepares every required backend that is not yet ready. Pending
// preparations run concurrently; the call returns once all finish or the
// first one fails. On failure all loaded resources are released exactly once,
// every readiness flag is cleared, and the returned error carries
// services.ErrInit.
func (r *Registry) EnsureReady(ctx context.Context, tts stage.TTSMethod, asr stage.ASRMethod, diarization bool) error {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	logger := logging.WithContext(ctx, r.logger)

	var pending []Kind
	for _, kind := range Required(tts, asr, diarization) {
		if r.Ready(kind) {
			logger.Debug("backend already ready",
				logging.String(logging.FieldEventType, "backend_skip"),
				logging.String(logging.FieldBackend, string(kind)),
			)
			continue
		}
		pending = append(pending, kind)
	}
	if len(pending) == 0 {
		return nil
	}
	if r.preparer == nil {
		return services.Wrap(services.ErrInit, "backend", "ensure ready", "no backend preparer configured", nil)
	}

	start := time.Now()
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(len(pending))
	for _, kind := range pending {
		group.Go(func() error {
			logger.Info("preparing backend",
				logging.String(logging.FieldEventType, "backend_prepare"),
				logging.String(logging.FieldBackend, string(kind)),
			)
			return r.prepare(groupCtx, kind)
		})
	}

	if err := group.Wait(); err != nil {
		r.reset(ctx)
		details := services.Details(err)
		logging.ErrorWithContext(logger, "backend initialization failed", "backend_init_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, string(details.Kind)),
			logging.String(logging.FieldErrorHint, "check the tools environment and GPU availability"),
		)
		return services.Wrap(services.ErrInit, "backend", "ensure ready", "backend initialization failed", err)
	}

	r.mu.Lock()
	for _, kind := range pending {
		r.ready[kind] = true
	}
	r.mu.Unlock()

	logger.Info("backends ready",
		logging.Int("prepared", len(pending)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Ready reports whether kind has been prepared.
func (r *Registry) Ready(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready[kind]
}

// Snapshot returns a copy of the readiness map.
func (r *Registry) Snapshot() map[Kind]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Kind]bool, len(r.ready))
	for kind, ok := range r.ready {
		out[kind] = ok
	}
	return out
}

// Health reports readiness of the backends required for the given engines.
func (r *Registry) Health(tts stage.TTSMethod, asr stage.ASRMethod, diarization bool) []stage.Health {
	required := Required(tts, asr, diarization)
	out := make([]stage.Health, 0, len(required))
	for _, kind := range required {
		if r.Ready(kind) {
			out = append(out, stage.Healthy(string(kind)))
			continue
		}
		out = append(out, stage.Unhealthy(string(kind), "not loaded"))
	}
	return out
}

// Reset releases every backend and clears readiness.
func (r *Registry) Reset(ctx context.Context) {
	r.initMu.Lock()
	defer r.initMu.Unlock()
	r.reset(ctx)
}

// prepare loads one backend, converting a preparer panic into an error so it
// flows through the same reset path as any other failure.
func (r *Registry) prepare(ctx context.Context, kind Kind) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = services.Wrap(services.ErrInit, "backend", "prepare "+string(kind), "backend preparer panicked", fmt.Errorf("panic: %v", rec))
		}
	}()
	if err := r.preparer.Prepare(ctx, kind); err != nil {
		return fmt.Errorf("prepare %s: %w", kind, err)
	}
	return nil
}

func (r *Registry) reset(ctx context.Context) {
	if r.releaser != nil {
		if err := r.releaser.Release(context.WithoutCancel(ctx)); err != nil {
			logging.WarnWithContext(r.logger, "backend release failed", "backend_release_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "model memory may remain allocated until exit"),
			)
		}
	}
	r.mu.Lock()
	for kind := range r.ready {
		r.ready[kind] = false
	}
	r.mu.Unlock()
	r.logger.Info("backends reset", logging.String(logging.FieldEventType, "backend_reset"))
}
