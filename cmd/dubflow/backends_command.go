package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dubflow/internal/backend"
	"dubflow/internal/preflight"
	"dubflow/internal/stage"
)

func newBackendsCommand(ctx *commandContext) *cobra.Command {
	var prepare bool

	cmd := &cobra.Command{
		Use:   "backends",
		Short: "Show required model backends and external dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			params := cfg.Params()
			tts := params.Synthesis.Method
			asr := params.Transcription.Method
			diarization := params.Transcription.Diarization

			toolClient := newToolsClient(cfg, logger)
			registry := backend.NewRegistry(toolClient, toolClient, logger)
			var prepareErr error
			if prepare {
				prepareErr = registry.EnsureReady(cmd.Context(), tts, asr, diarization)
				defer registry.Reset(cmd.Context())
			}

			p := newStatusPrinter(cmd.OutOrStdout())
			p.section("Engines")
			p.line("ASR", statusInfo, describeASR(asr, diarization))
			p.line("Translation", statusInfo, string(params.Translation.Method))
			p.line("TTS", statusInfo, string(tts))

			p.section("Backends")
			for _, h := range registry.Health(tts, asr, diarization) {
				switch {
				case h.Ready:
					p.line(h.Name, statusOK, "loaded")
				case prepare:
					p.line(h.Name, statusWarn, h.Detail)
				default:
					p.line(h.Name, statusInfo, "loaded on first run")
				}
			}

			p.section("Dependencies")
			for _, dep := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				p.check(dep.Name, dep.Available, dep.Optional, dep.Summary())
			}
			toolsCheck := preflight.CheckToolsPackage(cfg)
			p.check(toolsCheck.Name, toolsCheck.Passed, false, toolsCheck.Detail)

			return prepareErr
		},
	}
	cmd.Flags().BoolVar(&prepare, "prepare", false, "Load the required backends now to verify they work")
	return cmd
}

func describeASR(method stage.ASRMethod, diarization bool) string {
	if method == stage.ASRWhisperX && diarization {
		return string(method) + " + diarization"
	}
	return string(method)
}
