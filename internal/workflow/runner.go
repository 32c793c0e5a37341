package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dubflow/internal/logging"
	"dubflow/internal/services"
	"dubflow/internal/stage"
)

// Runner drives one work item through the six stages with whole-sequence
// retries. A Runner is safe for concurrent use by multiple items.
type Runner struct {
	stages stage.Set
	root   string
	logger *slog.Logger
	sleep  Sleeper

	limitsOnce sync.Once
	limits     *stageLimits
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithSleeper replaces the context-aware wait used between attempts.
func WithSleeper(sleeper Sleeper) RunnerOption {
	return func(r *Runner) {
		if sleeper != nil {
			r.sleep = sleeper
		}
	}
}

// NewRunner constructs a runner resolving remote item folders under root.
func NewRunner(stages stage.Set, root string, logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		stages: stages,
		root:   root,
		logger: logging.NewComponentLogger(logger, "runner"),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// attemptState carries progress between attempts in resume mode.
type attemptState struct {
	folder string
	next   int
}

type attemptFailure struct {
	stage   stage.Name
	message string
	err     error
}

// Run processes item until it succeeds, fails permanently, exhausts
// params.Execution.Attempts(), or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, item stage.WorkItem, params stage.Params) Outcome {
	r.limitsOnce.Do(func() {
		r.limits = newStageLimits(params.Execution.StageConcurrency)
	})

	itemCtx := services.WithItem(ctx, item.Label())
	logger := logging.WithContext(itemCtx, r.logger)
	maxAttempts := params.Execution.Attempts()

	var (
		state    attemptState
		last     *attemptFailure
		attempts int
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := backoffDelay(params.Execution.RetryDelay, params.Execution.RetryMaxDelay, attempt-1)
			logger.Info("retrying item",
				logging.String(logging.FieldEventType, "attempt_retry"),
				logging.Int(logging.FieldAttempt, attempt),
				logging.Int("max_attempts", maxAttempts),
				logging.Duration("delay", delay),
			)
			if err := r.sleep(ctx, delay); err != nil {
				last = cancelled(last, err)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			last = cancelled(last, err)
			break
		}
		if !params.Execution.ResumeFromFailedStage {
			state = attemptState{}
		}

		attempts = attempt
		attemptCtx := services.WithAttempt(itemCtx, attempt)
		attemptCtx = services.WithRequestID(attemptCtx, uuid.NewString())

		video, failure := r.attempt(attemptCtx, item, params, &state)
		if failure == nil {
			logger.Info("item completed",
				logging.String("video", video),
				logging.Int("attempts", attempt),
			)
			return Outcome{Item: item, Video: video, Attempts: attempt}
		}
		last = failure

		if services.IsPermanent(failure.err) {
			logger.Warn("item failed permanently",
				logging.String(logging.FieldEventType, "item_permanent_failure"),
				logging.String(logging.FieldStage, string(failure.stage)),
				logging.String("message", failure.message),
				logging.String(logging.FieldErrorHint, "check the video metadata returned by the source"),
				logging.String(logging.FieldImpact, "item skipped without retry"),
			)
			break
		}
		if ctx.Err() != nil {
			last = cancelled(last, ctx.Err())
			break
		}
	}

	if last == nil {
		last = &attemptFailure{message: fmt.Sprintf("达到最大重试次数: %d", maxAttempts), err: services.ErrTransient}
	}
	return Outcome{
		Item:        item,
		Message:     last.message,
		Err:         last.err,
		FailedStage: last.stage,
		Attempts:    attempts,
	}
}

// attempt runs the stage sequence once, starting at state.next.
func (r *Runner) attempt(ctx context.Context, item stage.WorkItem, params stage.Params, state *attemptState) (video string, failure *attemptFailure) {
	current := stage.Name("")
	defer func() {
		if rec := recover(); rec != nil {
			err := services.Wrap(services.ErrTransient, string(current), "attempt", "unexpected panic", fmt.Errorf("panic: %v", rec))
			logging.ErrorWithContext(logging.WithContext(ctx, r.logger), "attempt panicked", "attempt_panic",
				logging.String(logging.FieldStage, string(current)),
				logging.Any("panic", rec),
				logging.String("stack", string(debug.Stack())),
			)
			video = ""
			failure = &attemptFailure{
				stage:   current,
				message: fmt.Sprintf("处理视频时发生错误 %s: %v", item.Label(), rec),
				err:     err,
			}
		}
	}()

	for idx := state.next; idx < len(stage.Order); idx++ {
		current = stage.Order[idx]
		result := r.runStage(ctx, current, item, params, state)
		if !result.OK() {
			state.next = idx
			return "", r.stageFailure(ctx, current, item, result.Err)
		}
		state.next = idx + 1
		if current == stage.NameComposite {
			video = result.Artifact
		}
	}
	return video, nil
}

func (r *Runner) runStage(ctx context.Context, name stage.Name, item stage.WorkItem, params stage.Params, state *attemptState) stage.Result {
	stageCtx := services.WithStage(ctx, string(name))
	logger := logging.WithContext(stageCtx, r.logger)

	release, err := r.limits.acquire(stageCtx, name)
	if err != nil {
		return stage.Failed(err)
	}
	defer release()

	start := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("folder", state.folder),
	)

	result := r.dispatch(stageCtx, name, item, params, state)
	if result.OK() {
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("artifact", result.Artifact),
			logging.Duration("stage_duration", time.Since(start)),
		)
	}
	return result
}

func (r *Runner) dispatch(ctx context.Context, name stage.Name, item stage.WorkItem, params stage.Params, state *attemptState) stage.Result {
	switch name {
	case stage.NameDownload:
		return r.download(ctx, item, params, state)
	case stage.NameSeparate:
		if r.stages.Separator == nil {
			return stage.Failed(missingStage(name))
		}
		return r.stages.Separator.Separate(ctx, state.folder, params.Separation)
	case stage.NameTranscribe:
		t, err := r.stages.Transcriber(params.Transcription.Method)
		if err != nil {
			return stage.Failed(services.Wrap(services.ErrConfiguration, string(name), "lookup engine", "transcription engine unavailable", err))
		}
		return t.Transcribe(ctx, state.folder, params.Transcription)
	case stage.NameTranslate:
		t, err := r.stages.Translator(params.Translation.Method)
		if err != nil {
			return stage.Failed(services.Wrap(services.ErrConfiguration, string(name), "lookup engine", "translation engine unavailable", err))
		}
		return t.Translate(ctx, state.folder, params.Translation)
	case stage.NameSynthesize:
		s, err := r.stages.Synthesizer(params.Synthesis.Method)
		if err != nil {
			return stage.Failed(services.Wrap(services.ErrConfiguration, string(name), "lookup engine", "synthesis engine unavailable", err))
		}
		return s.Synthesize(ctx, state.folder, params.Synthesis)
	case stage.NameComposite:
		if r.stages.Compositor == nil {
			return stage.Failed(missingStage(name))
		}
		return r.stages.Compositor.Composite(ctx, state.folder, params.Composition)
	default:
		return stage.Failed(fmt.Errorf("unknown stage %q", name))
	}
}

// download resolves the working folder and fetches remote items. Local items
// already sit in their folder.
func (r *Runner) download(ctx context.Context, item stage.WorkItem, params stage.Params, state *attemptState) stage.Result {
	if item.IsLocal() {
		state.folder = filepath.Dir(item.Path)
		return stage.Ok(item.Path)
	}
	if r.stages.Downloader == nil {
		return stage.Failed(missingStage(stage.NameDownload))
	}
	folder, ok := r.stages.Downloader.TargetFolder(item, r.root)
	if !ok {
		return stage.Failed(services.Wrap(
			services.ErrFolderResolution, string(stage.NameDownload), "resolve folder",
			fmt.Sprintf("无法获取视频目标文件夹: %s", item.Label()), nil))
	}
	state.folder = folder
	return r.stages.Downloader.Download(ctx, item, r.root, params.Download.Resolution)
}

func (r *Runner) stageFailure(ctx context.Context, name stage.Name, item stage.WorkItem, err error) *attemptFailure {
	if err == nil {
		err = errors.New("stage reported failure without detail")
	}
	if services.KindOf(err) == services.KindUnknown {
		err = services.Wrap(markerFor(name), string(name), "run", name.FailureLabel(), err)
	}

	details := services.Details(err)
	message := failureMessage(name, details)

	logger := logging.WithContext(services.WithStage(ctx, string(name)), r.logger)
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String("message", message),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorOperation, details.Operation),
		logging.String(logging.FieldErrorHint, firstNonEmpty(details.Hint, "see tool output above")),
		logging.String(logging.FieldItem, item.Label()),
		logging.Error(err),
	)
	return &attemptFailure{stage: name, message: message, err: err}
}

// failureMessage builds the user-facing "<label>: <detail>" text. Folder
// resolution already carries its complete message.
func failureMessage(name stage.Name, details services.ErrorDetails) string {
	if details.Kind == services.KindFolderResolution {
		return details.Message
	}
	label := name.FailureLabel()
	parts := []string{label}
	if msg := strings.TrimSpace(details.Message); msg != "" && msg != label {
		parts = append(parts, msg)
	}
	if details.Cause != nil {
		if cause := strings.TrimSpace(details.Cause.Error()); cause != "" && cause != parts[len(parts)-1] {
			parts = append(parts, cause)
		}
	}
	return strings.Join(parts, ": ")
}

func markerFor(name stage.Name) error {
	switch name {
	case stage.NameDownload:
		return services.ErrDownload
	case stage.NameSeparate:
		return services.ErrSeparation
	case stage.NameTranscribe:
		return services.ErrTranscription
	case stage.NameTranslate:
		return services.ErrTranslation
	case stage.NameSynthesize:
		return services.ErrSynthesis
	case stage.NameComposite:
		return services.ErrComposition
	default:
		return services.ErrTransient
	}
}

func missingStage(name stage.Name) error {
	return services.Wrap(services.ErrConfiguration, string(name), "lookup stage", "stage not configured", nil)
}

func cancelled(last *attemptFailure, err error) *attemptFailure {
	out := &attemptFailure{
		message: fmt.Sprintf("处理已取消: %v", err),
		err:     services.Wrap(services.ErrTransient, "", "run item", "cancelled", err),
	}
	if last != nil {
		out.stage = last.stage
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
