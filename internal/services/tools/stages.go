package tools

import (
	"context"
	"strconv"

	"dubflow/internal/services"
	"dubflow/internal/stage"
)

// Separator splits vocals from the accompaniment.
type Separator struct{ client *Client }

// Transcriber runs one ASR engine.
type Transcriber struct {
	client *Client
	method stage.ASRMethod
}

// Translator runs one tool-side translation engine.
type Translator struct {
	client *Client
	method stage.TranslationMethod
}

// Synthesizer runs one TTS engine.
type Synthesizer struct {
	client *Client
	method stage.TTSMethod
}

// Compositor renders the final video.
type Compositor struct{ client *Client }

func (c *Client) Separator() *Separator   { return &Separator{client: c} }
func (c *Client) Compositor() *Compositor { return &Compositor{client: c} }

func (c *Client) Transcriber(method stage.ASRMethod) *Transcriber {
	return &Transcriber{client: c, method: method}
}

func (c *Client) Translator(method stage.TranslationMethod) *Translator {
	return &Translator{client: c, method: method}
}

func (c *Client) Synthesizer(method stage.TTSMethod) *Synthesizer {
	return &Synthesizer{client: c, method: method}
}

func (s *Separator) Separate(ctx context.Context, folder string, p stage.SeparationParams) stage.Result {
	args := []string{"--model", p.Model, "--device", p.Device, "--shifts", strconv.Itoa(p.Shifts)}
	return s.client.invoke(ctx, stage.NameSeparate, services.ErrSeparation, ModuleSeparate, folder, args)
}

func (t *Transcriber) Transcribe(ctx context.Context, folder string, p stage.TranscriptionParams) stage.Result {
	args := []string{
		"--method", string(t.method),
		"--model-size", p.ModelSize,
		"--device", p.Device,
		"--batch-size", strconv.Itoa(p.BatchSize),
	}
	// FunASR has no diarization switch.
	if p.Diarization && t.method == stage.ASRWhisperX {
		args = append(args, "--diarization")
	}
	if p.MinSpeakers > 0 {
		args = append(args, "--min-speakers", strconv.Itoa(p.MinSpeakers))
	}
	if p.MaxSpeakers > 0 {
		args = append(args, "--max-speakers", strconv.Itoa(p.MaxSpeakers))
	}
	return t.client.invoke(ctx, stage.NameTranscribe, services.ErrTranscription, ModuleTranscribe, folder, args)
}

func (t *Translator) Translate(ctx context.Context, folder string, p stage.TranslationParams) stage.Result {
	args := []string{"--method", string(t.method), "--target-language", p.TargetLanguage}
	return t.client.invoke(ctx, stage.NameTranslate, services.ErrTranslation, ModuleTranslate, folder, args)
}

func (s *Synthesizer) Synthesize(ctx context.Context, folder string, p stage.SynthesisParams) stage.Result {
	args := []string{"--method", string(s.method), "--target-language", p.TargetLanguage}
	if p.Voice != "" {
		args = append(args, "--voice", p.Voice)
	}
	return s.client.invoke(ctx, stage.NameSynthesize, services.ErrSynthesis, ModuleSynthesize, folder, args)
}

func (c *Compositor) Composite(ctx context.Context, folder string, p stage.CompositionParams) stage.Result {
	args := []string{
		"--speed-up", formatFloat(p.SpeedUp),
		"--fps", strconv.Itoa(p.FPS),
		"--resolution", p.Resolution,
		"--bgm-volume", formatFloat(p.BGMVolume),
		"--video-volume", formatFloat(p.VideoVolume),
	}
	if p.Subtitles {
		args = append(args, "--subtitles")
	}
	if p.BackgroundMusic != "" {
		args = append(args, "--background-music", p.BackgroundMusic)
	}
	return c.client.invoke(ctx, stage.NameComposite, services.ErrComposition, ModuleComposite, folder, args)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
