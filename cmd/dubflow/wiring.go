package main

import (
	"fmt"
	"log/slog"
	"time"

	"dubflow/internal/backend"
	"dubflow/internal/config"
	"dubflow/internal/deps"
	"dubflow/internal/history"
	"dubflow/internal/notifications"
	"dubflow/internal/services/llm"
	"dubflow/internal/services/tools"
	"dubflow/internal/services/translator"
	"dubflow/internal/services/ytdlp"
	"dubflow/internal/stage"
	"dubflow/internal/workflow"
)

// llmRepetitionPenalty discourages looping output on long transcripts.
const llmRepetitionPenalty = 1.1

// pipeline holds the process-wide components a batch runs against.
type pipeline struct {
	history     *history.Store
	registry    *backend.Registry
	coordinator *workflow.Coordinator
}

func newPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	toolClient := newToolsClient(cfg, logger)
	registry := backend.NewRegistry(toolClient, toolClient, logger)
	coordinator := workflow.NewCoordinator(
		buildStages(cfg, toolClient, logger),
		registry,
		logger,
		workflow.WithRecorder(store),
		workflow.WithNotifier(notifications.NewService(cfg)),
	)
	return &pipeline{
		history:     store,
		registry:    registry,
		coordinator: coordinator,
	}, nil
}

func (p *pipeline) Close() error {
	if p == nil || p.history == nil {
		return nil
	}
	return p.history.Close()
}

func newToolsClient(cfg *config.Config, logger *slog.Logger) *tools.Client {
	return tools.New(tools.Config{
		Python:       cfg.PythonBinary(),
		Package:      cfg.Tools.Package,
		WorkDir:      cfg.Tools.WorkDir,
		StageTimeout: time.Duration(cfg.Tools.StageTimeoutMinutes) * time.Minute,
	}, logger)
}

// buildStages registers every engine so any configured method resolves.
func buildStages(cfg *config.Config, toolClient *tools.Client, logger *slog.Logger) stage.Set {
	var ytOpts []ytdlp.Option
	if status := deps.CheckFFmpegForYtDlp(cfg.FFmpegBinary(), cfg.YtDlpBinary()); status.Available {
		ytOpts = append(ytOpts, ytdlp.WithFFmpeg(status.Command))
	}
	yt := ytdlp.New(cfg.YtDlpBinary(), logger, ytOpts...)

	llmCfg := cfg.GetLLM()
	llmTranslator := translator.New(llm.NewClient(llm.Config{
		APIKey:            llmCfg.APIKey,
		BaseURL:           llmCfg.BaseURL,
		Model:             llmCfg.Model,
		TimeoutSeconds:    llmCfg.TimeoutSeconds,
		RepetitionPenalty: llmRepetitionPenalty,
	}), logger)

	set := stage.Set{
		Resolver:     yt,
		Downloader:   yt,
		Separator:    toolClient.Separator(),
		Transcribers: make(map[stage.ASRMethod]stage.Transcriber, len(stage.ASRMethods)),
		Translators:  make(map[stage.TranslationMethod]stage.Translator, len(stage.TranslationMethods)),
		Synthesizers: make(map[stage.TTSMethod]stage.Synthesizer, len(stage.TTSMethods)),
		Compositor:   toolClient.Compositor(),
	}
	for _, method := range stage.ASRMethods {
		set.Transcribers[method] = toolClient.Transcriber(method)
	}
	for _, method := range stage.TranslationMethods {
		switch method {
		case stage.TranslationLLM, stage.TranslationOpenAI:
			set.Translators[method] = llmTranslator
		default:
			set.Translators[method] = toolClient.Translator(method)
		}
	}
	for _, method := range stage.TTSMethods {
		set.Synthesizers[method] = toolClient.Synthesizer(method)
	}
	return set
}
