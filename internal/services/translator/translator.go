package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dubflow/internal/fileutil"
	"dubflow/internal/language"
	"dubflow/internal/logging"
	"dubflow/internal/services"
	"dubflow/internal/services/llm"
	"dubflow/internal/stage"
	"dubflow/internal/textutil"
)

// File names inside an item folder.
const (
	TranscriptFile  = "transcript.json"
	TranslationFile = "translation.json"
	SummaryFile     = "summary.json"
)

// historyTurns is how many previous line pairs are replayed for context.
const historyTurns = 4

// Completer is the subset of the LLM client the translator uses.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Segment is one transcribed line. Translation is empty in transcript.json.
type Segment struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Text        string  `json:"text"`
	Speaker     string  `json:"speaker,omitempty"`
	Translation string  `json:"translation,omitempty"`
}

// Summary describes the video as a whole; it steers line translation.
type Summary struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Terms   []string `json:"terms,omitempty"`
}

// Translator implements stage.Translator on top of an OpenAI-compatible LLM.
type Translator struct {
	client Completer
	logger *slog.Logger
}

// New constructs a translator.
func New(client Completer, logger *slog.Logger) *Translator {
	return &Translator{
		client: client,
		logger: logging.NewComponentLogger(logger, "translator"),
	}
}

// Translate reads transcript.json from folder and writes translation.json.
// An existing non-empty translation is reused along with its summary.
func (t *Translator) Translate(ctx context.Context, folder string, params stage.TranslationParams) stage.Result {
	target := language.EnglishName(params.TargetLanguage)
	if target == "" {
		return stage.Failed(services.Wrap(services.ErrConfiguration, string(stage.NameTranslate), "translate", "target language required", nil))
	}
	logger := logging.WithContext(ctx, t.logger)
	outPath := filepath.Join(folder, TranslationFile)
	summaryPath := filepath.Join(folder, SummaryFile)

	if fileutil.FileExists(outPath) {
		summary, err := readSummary(summaryPath)
		if err != nil {
			summary = Summary{}
			logger.Debug("cached summary unreadable",
				logging.String("path", summaryPath),
				logging.Error(err),
			)
		}
		logger.Info("translation already present",
			logging.String(logging.FieldEventType, "translation_skip"),
			logging.String("path", outPath),
		)
		return stage.Result{Artifact: outPath, Summary: summary.Summary}
	}

	segments, err := readSegments(filepath.Join(folder, TranscriptFile))
	if err != nil {
		return stage.Failed(services.Wrap(services.ErrTranslation, string(stage.NameTranslate), "read transcript", "", err))
	}

	start := time.Now()
	summary, err := t.summarize(ctx, filepath.Base(folder), segments, target)
	if err != nil {
		return stage.Failed(services.Wrap(services.ErrTranslation, string(stage.NameTranslate), "summarize", "", err))
	}
	if err := t.translateLines(ctx, segments, summary, target); err != nil {
		return stage.Failed(services.Wrap(services.ErrTranslation, string(stage.NameTranslate), "translate lines", "", err))
	}

	if err := writeJSON(summaryPath, summary); err != nil {
		return stage.Failed(services.Wrap(services.ErrTranslation, string(stage.NameTranslate), "write summary", "", err))
	}
	if err := writeJSON(outPath, segments); err != nil {
		return stage.Failed(services.Wrap(services.ErrTranslation, string(stage.NameTranslate), "write translation", "", err))
	}
	logger.Info("translation complete",
		logging.String(logging.FieldEventType, "translation_complete"),
		logging.Int("segments", len(segments)),
		logging.String("target_language", target),
		logging.String("target_code", language.Code(params.TargetLanguage)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return stage.Result{Artifact: outPath, Summary: summary.Summary}
}

func (t *Translator) summarize(ctx context.Context, title string, segments []Segment, target string) (Summary, error) {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, seg.Text)
	}
	system := fmt.Sprintf(
		"You summarize video transcripts. Respond with JSON only: "+
			`{"title": string, "summary": string, "terms": [string]}. `+
			"Write the title and summary in %s. List proper nouns and domain terms in terms.", target)
	user := fmt.Sprintf("Video title: %s\nTranscript:\n%s", title, textutil.TruncateRunes(strings.Join(lines, " "), 8000))

	content, err := t.client.CompleteJSON(ctx, system, user)
	if err != nil {
		return Summary{}, err
	}
	var summary Summary
	if err := llm.DecodeLLMJSON(content, &summary); err != nil {
		return Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	if strings.TrimSpace(summary.Summary) == "" {
		return Summary{}, errors.New("model returned an empty summary")
	}
	return summary, nil
}

func (t *Translator) translateLines(ctx context.Context, segments []Segment, summary Summary, target string) error {
	system := fmt.Sprintf(
		"You are a professional subtitle translator. Translate each line the user sends into %s. "+
			"Reply with the translation only, no notes or quotes. Keep it concise enough to dub.\n"+
			"Video: %s\nSummary: %s", target, summary.Title, summary.Summary)
	if len(summary.Terms) > 0 {
		system += "\nTerms: " + strings.Join(summary.Terms, ", ")
	}

	var history []llm.Message
	for i := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		text := strings.TrimSpace(segments[i].Text)
		if text == "" {
			continue
		}
		messages := make([]llm.Message, 0, len(history)+2)
		messages = append(messages, llm.System(system))
		messages = append(messages, history...)
		messages = append(messages, llm.User(text))

		reply, err := t.client.Complete(ctx, messages)
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		reply = cleanReply(reply)
		if reply == "" {
			return fmt.Errorf("line %d: empty translation", i+1)
		}
		segments[i].Translation = reply

		history = append(history, llm.User(text), llm.Assistant(reply))
		if len(history) > historyTurns*2 {
			history = history[len(history)-historyTurns*2:]
		}
	}
	return nil
}

// cleanReply strips wrapping quotes and a leading "Translation:" label that
// chat models tend to add.
func cleanReply(reply string) string {
	reply = strings.TrimSpace(reply)
	for _, prefix := range []string{"Translation:", "翻译："} {
		reply = strings.TrimSpace(strings.TrimPrefix(reply, prefix))
	}
	return strings.TrimSpace(strings.Trim(reply, "\"“”"))
}

func readSegments(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var segments []Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%s has no segments", filepath.Base(path))
	}
	return segments, nil
}

func readSummary(path string) (Summary, error) {
	var summary Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return summary, err
	}
	err = json.Unmarshal(data, &summary)
	return summary, err
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

var _ stage.Translator = (*Translator)(nil)
