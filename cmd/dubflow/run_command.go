package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dubflow/internal/config"
	"dubflow/internal/language"
	"dubflow/internal/logging"
	"dubflow/internal/preflight"
	"dubflow/internal/workflow"
	"dubflow/internal/workspace"
)

type runOptions struct {
	root           string
	count          int
	resolution     string
	asr            string
	translation    string
	tts            string
	targetLanguage string
	voice          string
	maxRetries     int
	maxWorkers     int
	subtitles      bool
	resume         bool
	skipPreflight  bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <url|file.mp4> [url...]",
		Short: "Dub videos from URLs or a local .mp4",
		Long: "Run resolves the input into videos and dubs each one.\n\n" +
			"Several URLs may be given as separate arguments or separated by commas or newlines.\n" +
			"A single argument ending in .mp4 is processed as a local video.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := applyRunOverrides(cmd, *base, opts)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			if !opts.skipPreflight {
				if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
					printPreflightFailures(cmd.ErrOrStderr(), failed)
					return errors.New("preflight checks failed (use --skip-preflight to run anyway)")
				}
			}

			pipe, err := newPipeline(cfg, logger)
			if err != nil {
				return err
			}
			defer pipe.Close()

			ws, err := workspace.Open(cfg.Paths.WorkspaceRoot, logger)
			if err != nil {
				return err
			}
			input := strings.Join(args, "\n")
			report, err := ws.Run(cmd.Context(), pipe.coordinator, input, cfg.Params())
			if err != nil {
				if errors.Is(err, workspace.ErrBusy) {
					return fmt.Errorf("%w: another dubflow run is using %s", err, ws.Root())
				}
				return err
			}
			logger.Debug("batch report", logging.String("batch_id", report.BatchID))
			return printReport(cmd.OutOrStdout(), report)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.root, "root", "", "Workspace root (default paths.workspace_root)")
	flags.IntVarP(&opts.count, "count", "n", 0, "Videos to take from each playlist or channel")
	flags.StringVar(&opts.resolution, "resolution", "", "Download resolution, e.g. 1080p")
	flags.StringVar(&opts.asr, "asr", "", "Speech recognition engine (WhisperX, FunASR)")
	flags.StringVar(&opts.translation, "translation", "", "Translation engine (OpenAI, LLM, Google Translate, Bing Translate, Ernie)")
	flags.StringVar(&opts.tts, "tts", "", "Speech synthesis engine (xtts, cosyvoice, EdgeTTS)")
	flags.StringVar(&opts.targetLanguage, "target-language", "", "Target language for translation and speech ("+strings.Join(language.Labels(), ", ")+")")
	flags.StringVar(&opts.voice, "voice", "", "Voice name for speech synthesis")
	flags.IntVar(&opts.maxRetries, "max-retries", 0, "Attempts per video (1-10)")
	flags.IntVar(&opts.maxWorkers, "max-workers", 0, "Videos processed concurrently")
	flags.BoolVar(&opts.subtitles, "subtitles", false, "Burn subtitles into the output video")
	flags.BoolVar(&opts.resume, "resume", false, "Retry from the failed stage instead of from download")
	flags.BoolVar(&opts.skipPreflight, "skip-preflight", false, "Skip environment checks before running")
	return cmd
}

// applyRunOverrides returns a validated copy of cfg with the flags the user
// set applied.
func applyRunOverrides(cmd *cobra.Command, cfg config.Config, opts runOptions) (*config.Config, error) {
	flags := cmd.Flags()
	if flags.Changed("root") {
		root, err := config.ExpandPath(strings.TrimSpace(opts.root))
		if err != nil {
			return nil, fmt.Errorf("--root: %w", err)
		}
		cfg.Paths.WorkspaceRoot = root
	}
	if flags.Changed("count") {
		cfg.Download.Count = opts.count
	}
	if flags.Changed("resolution") {
		cfg.Download.Resolution = strings.ToLower(strings.TrimSpace(opts.resolution))
	}
	if flags.Changed("asr") {
		cfg.Transcription.Method = opts.asr
	}
	if flags.Changed("translation") {
		cfg.Translation.Method = opts.translation
	}
	if flags.Changed("tts") {
		cfg.Synthesis.Method = opts.tts
	}
	if flags.Changed("target-language") {
		cfg.Translation.TargetLanguage = strings.TrimSpace(opts.targetLanguage)
		cfg.Synthesis.TargetLanguage = strings.TrimSpace(opts.targetLanguage)
	}
	if flags.Changed("voice") {
		cfg.Synthesis.Voice = strings.TrimSpace(opts.voice)
	}
	if flags.Changed("max-retries") {
		cfg.Execution.MaxRetries = opts.maxRetries
	}
	if flags.Changed("max-workers") {
		cfg.Execution.MaxWorkers = opts.maxWorkers
	}
	if flags.Changed("subtitles") {
		cfg.Composition.Subtitles = opts.subtitles
	}
	if flags.Changed("resume") {
		cfg.Execution.ResumeFromFailedStage = opts.resume
	}
	cfg.Canonicalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func printReport(out io.Writer, report workflow.Report) error {
	fmt.Fprintln(out, report.Text())
	if report.Video != "" {
		fmt.Fprintf(out, "视频: %s\n", report.Video)
	}
	switch {
	case report.Fatal:
		return fmt.Errorf("batch %s aborted", shortID(report.BatchID))
	case report.Failed > 0:
		return fmt.Errorf("batch %s finished with %d failed video(s)", shortID(report.BatchID), report.Failed)
	default:
		return nil
	}
}

func printPreflightFailures(out io.Writer, failed []preflight.Result) {
	p := newStatusPrinter(out)
	p.section("Preflight")
	for _, r := range failed {
		p.line(r.Name, statusError, r.Detail)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
