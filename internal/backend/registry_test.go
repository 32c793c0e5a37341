package backend

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"dubflow/internal/logging"
	"dubflow/internal/services"
	"dubflow/internal/stage"
)

type stubPreparer struct {
	mu    sync.Mutex
	calls []Kind
	fail  map[Kind]error
}

func (s *stubPreparer) Prepare(_ context.Context, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, kind)
	return s.fail[kind]
}

func (s *stubPreparer) count(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.calls {
		if k == kind {
			n++
		}
	}
	return n
}

type stubReleaser struct {
	mu    sync.Mutex
	calls int
}

func (s *stubReleaser) Release(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func TestRequired(t *testing.T) {
	tests := []struct {
		name        string
		tts         stage.TTSMethod
		asr         stage.ASRMethod
		diarization bool
		want        []Kind
	}{
		{"whisperx xtts", stage.TTSXTTS, stage.ASRWhisperX, false, []Kind{KindSeparation, KindWhisperX, KindXTTS}},
		{"whisperx diarize cosyvoice", stage.TTSCosyVoice, stage.ASRWhisperX, true, []Kind{KindSeparation, KindWhisperX, KindDiarization, KindCosyVoice}},
		{"funasr ignores diarization", stage.TTSEdge, stage.ASRFunASR, true, []Kind{KindSeparation, KindFunASR}},
		{"edge tts only separation", stage.TTSEdge, "", false, []Kind{KindSeparation}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Required(tt.tts, tt.asr, tt.diarization)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("Required = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnsureReadyIsIdempotent(t *testing.T) {
	prep := &stubPreparer{}
	rel := &stubReleaser{}
	reg := NewRegistry(prep, rel, logging.NewNop())

	for range 2 {
		if err := reg.EnsureReady(context.Background(), stage.TTSXTTS, stage.ASRWhisperX, false); err != nil {
			t.Fatalf("EnsureReady: %v", err)
		}
	}

	for _, kind := range []Kind{KindSeparation, KindWhisperX, KindXTTS} {
		if got := prep.count(kind); got != 1 {
			t.Fatalf("expected %s prepared once, got %d", kind, got)
		}
		if !reg.Ready(kind) {
			t.Fatalf("expected %s ready", kind)
		}
	}
	if reg.Ready(KindCosyVoice) || reg.Ready(KindDiarization) {
		t.Fatal("unrequested backends must stay not ready")
	}
	if rel.calls != 0 {
		t.Fatalf("expected no release, got %d", rel.calls)
	}
}

func TestEnsureReadyPreparesOnlyMissing(t *testing.T) {
	prep := &stubPreparer{}
	reg := NewRegistry(prep, &stubReleaser{}, logging.NewNop())
	ctx := context.Background()

	if err := reg.EnsureReady(ctx, stage.TTSXTTS, stage.ASRWhisperX, false); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if err := reg.EnsureReady(ctx, stage.TTSCosyVoice, stage.ASRWhisperX, true); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if prep.count(KindSeparation) != 1 || prep.count(KindWhisperX) != 1 {
		t.Fatalf("ready backends were prepared again: %v", prep.calls)
	}
	if prep.count(KindDiarization) != 1 || prep.count(KindCosyVoice) != 1 {
		t.Fatalf("missing backends not prepared: %v", prep.calls)
	}
}

func TestEnsureReadyFailureResetsEverything(t *testing.T) {
	prep := &stubPreparer{}
	rel := &stubReleaser{}
	reg := NewRegistry(prep, rel, logging.NewNop())
	ctx := context.Background()

	if err := reg.EnsureReady(ctx, stage.TTSEdge, stage.ASRWhisperX, false); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}

	prep.fail = map[Kind]error{KindXTTS: errors.New("out of memory")}
	err := reg.EnsureReady(ctx, stage.TTSXTTS, stage.ASRWhisperX, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrInit) {
		t.Fatalf("expected ErrInit, got %v", err)
	}
	if rel.calls != 1 {
		t.Fatalf("expected exactly one release, got %d", rel.calls)
	}
	for kind, ok := range reg.Snapshot() {
		if ok {
			t.Fatalf("expected %s reset to not ready", kind)
		}
	}

	prep.fail = nil
	if err := reg.EnsureReady(ctx, stage.TTSXTTS, stage.ASRWhisperX, false); err != nil {
		t.Fatalf("EnsureReady after reset: %v", err)
	}
	if prep.count(KindSeparation) != 2 {
		t.Fatalf("expected separation prepared again after reset, got %d", prep.count(KindSeparation))
	}
}

type panicPreparer struct {
	kind Kind
}

func (p panicPreparer) Prepare(_ context.Context, kind Kind) error {
	if kind == p.kind {
		panic("model weights corrupt")
	}
	return nil
}

func TestEnsureReadyRecoversPreparerPanic(t *testing.T) {
	rel := &stubReleaser{}
	reg := NewRegistry(panicPreparer{kind: KindXTTS}, rel, logging.NewNop())

	err := reg.EnsureReady(context.Background(), stage.TTSXTTS, stage.ASRWhisperX, false)
	if err == nil {
		t.Fatal("expected error from panicking preparer")
	}
	if !errors.Is(err, services.ErrInit) {
		t.Fatalf("expected ErrInit, got %v", err)
	}
	if rel.calls != 1 {
		t.Fatalf("expected exactly one release, got %d", rel.calls)
	}
	for kind, ok := range reg.Snapshot() {
		if ok {
			t.Fatalf("expected %s not ready after panic", kind)
		}
	}
}

// barrierPreparer blocks every Prepare call until want calls are in flight.
type barrierPreparer struct {
	want    int
	mu      sync.Mutex
	arrived int
	all     chan struct{}
}

func (b *barrierPreparer) Prepare(ctx context.Context, _ Kind) error {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.want {
		close(b.all)
	}
	b.mu.Unlock()

	select {
	case <-b.all:
		return nil
	case <-time.After(5 * time.Second):
		return errors.New("preparations did not overlap")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestEnsureReadyPreparesPendingConcurrently(t *testing.T) {
	want := Required(stage.TTSXTTS, stage.ASRWhisperX, true)
	if len(want) != 4 {
		t.Fatalf("expected four required backends, got %v", want)
	}
	prep := &barrierPreparer{want: len(want), all: make(chan struct{})}
	reg := NewRegistry(prep, &stubReleaser{}, logging.NewNop())

	if err := reg.EnsureReady(context.Background(), stage.TTSXTTS, stage.ASRWhisperX, true); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	for _, kind := range want {
		if !reg.Ready(kind) {
			t.Fatalf("expected %s ready", kind)
		}
	}
}

func TestEnsureReadySerializesCallers(t *testing.T) {
	prep := &stubPreparer{}
	reg := NewRegistry(prep, &stubReleaser{}, logging.NewNop())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reg.EnsureReady(context.Background(), stage.TTSXTTS, stage.ASRFunASR, false)
		}()
	}
	wg.Wait()

	for _, kind := range []Kind{KindSeparation, KindFunASR, KindXTTS} {
		if got := prep.count(kind); got != 1 {
			t.Fatalf("expected %s prepared once across concurrent callers, got %d", kind, got)
		}
	}
}

func TestHealthAndReset(t *testing.T) {
	rel := &stubReleaser{}
	reg := NewRegistry(&stubPreparer{}, rel, logging.NewNop())
	health := reg.Health(stage.TTSEdge, stage.ASRFunASR, false)
	if len(health) != 2 || health[0].Ready {
		t.Fatalf("unexpected health before prepare: %+v", health)
	}

	if err := reg.EnsureReady(context.Background(), stage.TTSEdge, stage.ASRFunASR, false); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	for _, h := range reg.Health(stage.TTSEdge, stage.ASRFunASR, false) {
		if !h.Ready {
			t.Fatalf("expected %s ready", h.Name)
		}
	}

	reg.Reset(context.Background())
	if rel.calls != 1 || reg.Ready(KindSeparation) {
		t.Fatalf("expected reset to release and clear, calls=%d", rel.calls)
	}
}
