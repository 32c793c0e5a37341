package stage

import (
	"context"
	"fmt"
)

// SourceResolver expands URLs (videos, playlists, channels) into work items.
type SourceResolver interface {
	Resolve(ctx context.Context, urls []string, count int) ([]WorkItem, error)
}

// Downloader places a remote item's video into its working folder.
type Downloader interface {
	// TargetFolder computes the item's folder under root; ok is false when
	// the item metadata is insufficient.
	TargetFolder(item WorkItem, root string) (folder string, ok bool)
	Download(ctx context.Context, item WorkItem, root string, resolution string) Result
}

type Separator interface {
	Separate(ctx context.Context, folder string, params SeparationParams) Result
}

type Transcriber interface {
	Transcribe(ctx context.Context, folder string, params TranscriptionParams) Result
}

type Translator interface {
	Translate(ctx context.Context, folder string, params TranslationParams) Result
}

type Synthesizer interface {
	Synthesize(ctx context.Context, folder string, params SynthesisParams) Result
}

type Compositor interface {
	Composite(ctx context.Context, folder string, params CompositionParams) Result
}

// Set bundles the stage implementations used by a pipeline. Engine-specific
// stages are looked up by their method enumeration.
type Set struct {
	Resolver     SourceResolver
	Downloader   Downloader
	Separator    Separator
	Transcribers map[ASRMethod]Transcriber
	Translators  map[TranslationMethod]Translator
	Synthesizers map[TTSMethod]Synthesizer
	Compositor   Compositor
}

// Transcriber returns the engine registered for method.
func (s Set) Transcriber(method ASRMethod) (Transcriber, error) {
	if t, ok := s.Transcribers[method]; ok && t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("no transcriber registered for %q", method)
}

// Translator returns the engine registered for method.
func (s Set) Translator(method TranslationMethod) (Translator, error) {
	if t, ok := s.Translators[method]; ok && t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("no translator registered for %q", method)
}

// Synthesizer returns the engine registered for method.
func (s Set) Synthesizer(method TTSMethod) (Synthesizer, error) {
	if t, ok := s.Synthesizers[method]; ok && t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("no synthesizer registered for %q", method)
}

// Validate ensures every stage needed for params is present.
func (s Set) Validate(params Params) error {
	switch {
	case s.Downloader == nil:
		return fmt.Errorf("stage set: downloader missing")
	case s.Separator == nil:
		return fmt.Errorf("stage set: separator missing")
	case s.Compositor == nil:
		return fmt.Errorf("stage set: compositor missing")
	}
	if _, err := s.Transcriber(params.Transcription.Method); err != nil {
		return fmt.Errorf("stage set: %w", err)
	}
	if _, err := s.Translator(params.Translation.Method); err != nil {
		return fmt.Errorf("stage set: %w", err)
	}
	if _, err := s.Synthesizer(params.Synthesis.Method); err != nil {
		return fmt.Errorf("stage set: %w", err)
	}
	return nil
}
