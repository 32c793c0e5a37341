package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dubflow/internal/history"
	"dubflow/internal/logging"
	"dubflow/internal/notifications"
	"dubflow/internal/services"
	"dubflow/internal/stage"
)

// Backends prepares the heavyweight engines a batch needs.
type Backends interface {
	EnsureReady(ctx context.Context, tts stage.TTSMethod, asr stage.ASRMethod, diarization bool) error
}

// Recorder persists batch progress.
type Recorder interface {
	BeginBatch(ctx context.Context, batch history.Batch) error
	RecordItem(ctx context.Context, item history.Item) error
	FinishBatch(ctx context.Context, id string, result history.Result) error
}

// Coordinator resolves user input into work items and runs each through the
// pipeline, aggregating a Report.
type Coordinator struct {
	stages   stage.Set
	backends Backends
	recorder Recorder
	notifier notifications.Service
	logger   *slog.Logger

	runnerOpts []RunnerOption
	now        func() time.Time
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRecorder stores batch history in rec.
func WithRecorder(rec Recorder) CoordinatorOption {
	return func(c *Coordinator) {
		c.recorder = rec
	}
}

// WithNotifier publishes batch lifecycle events through svc.
func WithNotifier(svc notifications.Service) CoordinatorOption {
	return func(c *Coordinator) {
		if svc != nil {
			c.notifier = svc
		}
	}
}

// WithRunnerOptions forwards options to every Runner the coordinator builds.
func WithRunnerOptions(opts ...RunnerOption) CoordinatorOption {
	return func(c *Coordinator) {
		c.runnerOpts = append(c.runnerOpts, opts...)
	}
}

// NewCoordinator wires a coordinator around a stage set and a backend
// registry shared by every batch in the process.
func NewCoordinator(stages stage.Set, backends Backends, logger *slog.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		stages:   stages,
		backends: backends,
		notifier: notifications.NewNoop(),
		logger:   logging.NewComponentLogger(logger, "coordinator"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DoEverything processes input (one local .mp4 path, or one or more source
// URLs) under root. It never panics; every failure resolves to a Report.
func (c *Coordinator) DoEverything(ctx context.Context, root, input string, params stage.Params) (report Report) {
	batchID := uuid.NewString()
	ctx = services.WithBatchID(ctx, batchID)
	logger := logging.WithContext(ctx, c.logger)
	started := c.now()

	defer func() {
		if rec := recover(); rec != nil {
			logging.ErrorWithContext(logger, "batch panicked", "batch_panic",
				logging.Any("panic", rec),
				logging.String("stack", string(debug.Stack())),
			)
			report = fatalReport(batchID, fmt.Sprintf("处理过程中发生错误: %v", rec), fmt.Errorf("panic: %v", rec))
		}
		c.finish(ctx, report, started)
	}()

	c.logParameters(logger, root, input, params)
	c.begin(ctx, batchID, root, input)

	tokens := NormalizeInput(input)
	if len(tokens) == 0 {
		err := services.Wrap(services.ErrSourceResolution, "", "normalize input", "no URL or path supplied", nil)
		return fatalReport(batchID, "获取视频信息失败，请检查URL是否正确", err)
	}
	if isLocalVideo(tokens) {
		return c.runLocal(ctx, batchID, root, tokens[0], params)
	}
	return c.runRemote(ctx, batchID, root, tokens, params)
}

func (c *Coordinator) runRemote(ctx context.Context, batchID, root string, tokens []string, params stage.Params) Report {
	logger := logging.WithContext(ctx, c.logger)

	if c.stages.Resolver == nil {
		err := services.Wrap(services.ErrConfiguration, "", "resolve sources", "source resolver not configured", nil)
		return fatalReport(batchID, fmt.Sprintf("获取视频列表失败: %v", err), err)
	}
	items, err := c.stages.Resolver.Resolve(ctx, tokens, params.Download.Count)
	if err != nil {
		err = services.Wrap(services.ErrSourceResolution, "", "resolve sources", "source resolution failed", err)
		logging.ErrorWithContext(logger, "source resolution failed", "source_resolution_failed",
			logging.Strings("inputs", tokens),
			logging.String(logging.FieldErrorHint, "check the URLs and yt-dlp output"),
			logging.Error(err),
		)
		return fatalReport(batchID, fmt.Sprintf("获取视频列表失败: %v", err), err)
	}
	if len(items) == 0 {
		err := services.Wrap(services.ErrSourceResolution, "", "resolve sources", "no videos resolved", nil)
		logger.Warn("no videos resolved from input",
			logging.String(logging.FieldEventType, "source_resolution_empty"),
			logging.Strings("inputs", tokens),
			logging.String(logging.FieldErrorHint, "check the URLs are reachable video, playlist or channel links"),
			logging.String(logging.FieldImpact, "batch aborted"),
		)
		return fatalReport(batchID, "获取视频信息失败，请检查URL是否正确", err)
	}

	if report, ok := c.ensureBackends(ctx, batchID, params); !ok {
		return report
	}

	c.notifyStarted(ctx, tokens, len(items))
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("items", len(items)),
		logging.Int("workers", params.Execution.Workers()),
	)

	runner := NewRunner(c.stages, root, c.logger, c.runnerOpts...)
	report := Report{BatchID: batchID}
	var mu sync.Mutex
	process := func(seq int, item stage.WorkItem) {
		outcome := c.guardItem(ctx, item, func() Outcome {
			return c.runItem(ctx, runner, item, params)
		})
		mu.Lock()
		report.add(outcome)
		mu.Unlock()
		c.guardHistory(ctx, func() {
			c.recordItem(ctx, batchID, seq, outcome)
		})
	}

	workers := params.Execution.Workers()
	if workers > len(items) {
		workers = len(items)
	}
	if workers <= 1 {
		for i, item := range items {
			process(i+1, item)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		for i, item := range items {
			g.Go(func() error {
				process(i+1, item)
				return nil
			})
		}
		_ = g.Wait()
	}

	report.Summary = countsSummary(report.Succeeded, report.Failed)
	logger.Info("batch completed",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.String("video", report.Video),
	)
	for _, detail := range report.Failures {
		logger.Info("failure detail", logging.String("detail", detail))
	}
	return report
}

// runItem runs one item unless the batch was cancelled before it started.
func (c *Coordinator) runItem(ctx context.Context, runner *Runner, item stage.WorkItem, params stage.Params) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{
			Item:    item,
			Message: fmt.Sprintf("处理已取消: %v", err),
			Err:     services.Wrap(services.ErrTransient, "", "run item", "cancelled", err),
		}
	}
	outcome := runner.Run(ctx, item, params)
	if !outcome.Succeeded() {
		c.notifyItemFailed(ctx, item.Label(), outcome.Message)
	}
	return outcome
}

// guardItem turns a panic raised while running item into a failed outcome so
// one item cannot take down the worker pool or the process.
func (c *Coordinator) guardItem(ctx context.Context, item stage.WorkItem, run func() Outcome) (outcome Outcome) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		err := services.Wrap(services.ErrTransient, "", "run item", "unexpected panic", fmt.Errorf("panic: %v", rec))
		logging.ErrorWithContext(logging.WithContext(ctx, c.logger), "item panicked", "item_panic",
			logging.String("item", item.Label()),
			logging.Any("panic", rec),
			logging.String("stack", string(debug.Stack())),
		)
		outcome = Outcome{
			Item:    item,
			Message: fmt.Sprintf("处理过程中发生错误: %v", rec),
			Err:     err,
		}
	}()
	return run()
}

// guardHistory runs a history write, logging instead of propagating a panic.
func (c *Coordinator) guardHistory(ctx context.Context, write func()) {
	defer func() {
		if rec := recover(); rec != nil {
			c.historyError(ctx, "record item", fmt.Errorf("panic: %v", rec))
		}
	}()
	write()
}

func (c *Coordinator) ensureBackends(ctx context.Context, batchID string, params stage.Params) (Report, bool) {
	if c.backends == nil {
		return Report{}, true
	}
	err := c.backends.EnsureReady(ctx, params.Synthesis.Method, params.Transcription.Method, params.Transcription.Diarization)
	if err == nil {
		return Report{}, true
	}
	if !services.IsBatchFatal(err) {
		err = services.Wrap(services.ErrInit, "", "ensure backends", "backend initialization failed", err)
	}
	logging.ErrorWithContext(logging.WithContext(ctx, c.logger), "backend initialization failed", "backend_init_failed",
		logging.String(logging.FieldErrorHint, "check model downloads and GPU availability"),
		logging.String(logging.FieldImpact, "no videos processed"),
		logging.Error(err),
	)
	return fatalReport(batchID, fmt.Sprintf("初始化模型失败: %v", err), err), false
}

func (c *Coordinator) logParameters(logger *slog.Logger, root, input string, params stage.Params) {
	logger.Info("batch parameters",
		logging.String("input", input),
		logging.String("root", root),
		logging.Int("count", params.Download.Count),
		logging.String("resolution", params.Download.Resolution),
	)
	logger.Info("separation parameters",
		logging.String(logging.FieldStage, string(stage.NameSeparate)),
		logging.String("model", params.Separation.Model),
		logging.String("device", params.Separation.Device),
		logging.Int("shifts", params.Separation.Shifts),
	)
	logger.Info("transcription parameters",
		logging.String(logging.FieldStage, string(stage.NameTranscribe)),
		logging.String("method", string(params.Transcription.Method)),
		logging.String("model_size", params.Transcription.ModelSize),
		logging.Int("batch_size", params.Transcription.BatchSize),
		logging.Bool("diarization", params.Transcription.Diarization),
	)
	logger.Info("translation parameters",
		logging.String(logging.FieldStage, string(stage.NameTranslate)),
		logging.String("method", string(params.Translation.Method)),
		logging.String("target_language", params.Translation.TargetLanguage),
	)
	logger.Info("synthesis parameters",
		logging.String(logging.FieldStage, string(stage.NameSynthesize)),
		logging.String("method", string(params.Synthesis.Method)),
		logging.String("target_language", params.Synthesis.TargetLanguage),
		logging.String("voice", params.Synthesis.Voice),
	)
	logger.Info("composition parameters",
		logging.String(logging.FieldStage, string(stage.NameComposite)),
		logging.Bool("subtitles", params.Composition.Subtitles),
		logging.Float64("speed_up", params.Composition.SpeedUp),
		logging.Int("fps", params.Composition.FPS),
		logging.String("resolution", params.Composition.Resolution),
	)
}
