package testsupport

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"dubflow/internal/stage"
)

// FakeStages is a scriptable stage.Set backend. Every stage succeeds unless a
// failure is registered for the item folder and stage.
type FakeStages struct {
	mu sync.Mutex

	// Items is returned by Resolve.
	Items []stage.WorkItem
	// ResolveErr is returned by Resolve when set.
	ResolveErr error
	// NoFolder lists titles whose TargetFolder lookup misses.
	NoFolder map[string]bool
	// Failures maps "<title>/<stage>" to the number of times the stage fails
	// before succeeding. A negative count fails forever.
	Failures map[string]int
	// Panics maps "<title>/<stage>" to a panic value raised once.
	Panics map[string]any

	resolveCalls int
	calls        map[stage.Name]int
	perItem      map[string][]stage.Name
	folders      map[string]string
	active       map[stage.Name]int
	peak         map[stage.Name]int
	// Hold, when non-nil, is called inside every stage while it is active.
	Hold func(name stage.Name)
}

// NewFakeStages constructs an empty fake.
func NewFakeStages() *FakeStages {
	return &FakeStages{
		NoFolder: map[string]bool{},
		Failures: map[string]int{},
		Panics:   map[string]any{},
		calls:    map[stage.Name]int{},
		perItem:  map[string][]stage.Name{},
		folders:  map[string]string{},
		active:   map[stage.Name]int{},
		peak:     map[stage.Name]int{},
	}
}

// Set returns a stage.Set where every method routes to f.
func (f *FakeStages) Set() stage.Set {
	return stage.Set{
		Resolver:     f,
		Downloader:   f,
		Separator:    f,
		Transcribers: map[stage.ASRMethod]stage.Transcriber{stage.ASRWhisperX: f, stage.ASRFunASR: f},
		Translators: map[stage.TranslationMethod]stage.Translator{
			stage.TranslationOpenAI: f, stage.TranslationLLM: f, stage.TranslationGoogle: f,
			stage.TranslationBing: f, stage.TranslationErnie: f,
		},
		Synthesizers: map[stage.TTSMethod]stage.Synthesizer{stage.TTSXTTS: f, stage.TTSCosyVoice: f, stage.TTSEdge: f},
		Compositor:   f,
	}
}

// ResolveCalls reports how many times Resolve was invoked.
func (f *FakeStages) ResolveCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolveCalls
}

// Calls reports how many times a stage ran across all items.
func (f *FakeStages) Calls(name stage.Name) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// ItemCalls returns the ordered stage calls recorded for a title.
func (f *FakeStages) ItemCalls(title string) []stage.Name {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stage.Name(nil), f.perItem[title]...)
}

// Peak reports the highest number of concurrent calls observed in a stage.
func (f *FakeStages) Peak(name stage.Name) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak[name]
}

func (f *FakeStages) Resolve(_ context.Context, _ []string, count int) ([]stage.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	if f.ResolveErr != nil {
		return nil, f.ResolveErr
	}
	items := f.Items
	if count > 0 && len(items) > count {
		items = items[:count]
	}
	return append([]stage.WorkItem(nil), items...), nil
}

func (f *FakeStages) TargetFolder(item stage.WorkItem, root string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(item.Title, stage.NameDownload)
	if f.NoFolder[item.Title] {
		return "", false
	}
	folder := filepath.Join(root, item.Title)
	f.folders[folder] = item.Title
	return folder, true
}

func (f *FakeStages) Download(ctx context.Context, item stage.WorkItem, root, _ string) stage.Result {
	return f.step(ctx, stage.NameDownload, item.Title, filepath.Join(root, item.Title, "download.mp4"))
}

func (f *FakeStages) Separate(ctx context.Context, folder string, _ stage.SeparationParams) stage.Result {
	return f.step(ctx, stage.NameSeparate, f.title(folder), filepath.Join(folder, "audio_vocals.wav"))
}

func (f *FakeStages) Transcribe(ctx context.Context, folder string, _ stage.TranscriptionParams) stage.Result {
	return f.step(ctx, stage.NameTranscribe, f.title(folder), filepath.Join(folder, "transcript.json"))
}

func (f *FakeStages) Translate(ctx context.Context, folder string, _ stage.TranslationParams) stage.Result {
	return f.step(ctx, stage.NameTranslate, f.title(folder), filepath.Join(folder, "translation.json"))
}

func (f *FakeStages) Synthesize(ctx context.Context, folder string, _ stage.SynthesisParams) stage.Result {
	return f.step(ctx, stage.NameSynthesize, f.title(folder), filepath.Join(folder, "audio_combined.wav"))
}

func (f *FakeStages) Composite(ctx context.Context, folder string, _ stage.CompositionParams) stage.Result {
	return f.step(ctx, stage.NameComposite, f.title(folder), filepath.Join(folder, "video.mp4"))
}

func (f *FakeStages) title(folder string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if title, ok := f.folders[folder]; ok {
		return title
	}
	return filepath.Base(folder)
}

// record must be called with f.mu held.
func (f *FakeStages) record(title string, name stage.Name) {
	f.calls[name]++
	f.perItem[title] = append(f.perItem[title], name)
}

func (f *FakeStages) step(ctx context.Context, name stage.Name, title, artifact string) stage.Result {
	key := title + "/" + string(name)

	f.mu.Lock()
	if name != stage.NameDownload {
		f.record(title, name)
	}
	f.active[name]++
	if f.active[name] > f.peak[name] {
		f.peak[name] = f.active[name]
	}
	panicValue, shouldPanic := f.Panics[key]
	if shouldPanic {
		delete(f.Panics, key)
	}
	remaining, failing := f.Failures[key]
	if failing && remaining > 0 {
		f.Failures[key] = remaining - 1
	}
	hold := f.Hold
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active[name]--
		f.mu.Unlock()
	}()

	if hold != nil {
		hold(name)
	}
	if shouldPanic {
		panic(panicValue)
	}
	if err := ctx.Err(); err != nil {
		return stage.Failed(err)
	}
	if failing && remaining != 0 {
		return stage.Failed(fmt.Errorf("%s exploded for %s", name, title))
	}
	return stage.Ok(artifact)
}

