package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/RCR0101/transcriber/internal/config"
	"github.com/RCR0101/transcriber/internal/logging"
	"github.com/RCR0101/transcriber/internal/platform"
	"github.com/RCR0101/transcriber/internal/transcribe"
	"github.com/RCR0101/transcriber/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type appState struct {
	verbose      bool
	quiet        bool
	jsonLogs     bool
	noProgress   bool
	model        string
	modelDir     string
	language     string
	translate    bool
	timestamps   bool
	noGPU        bool
	autoDownload bool
	output       string
	copyOutput   bool
	copyEmpty    bool
	configPath   string

	chunkThreshold time.Duration
	chunkOverlap   time.Duration
	silenceDBFS    float64

	logger *zap.Logger
	out    io.Writer

	transcribeFn func(ctx context.Context, source string) (transcribe.Result, error)
	copyFn       func(ctx context.Context, value string) error
}

func NewRootCmd() *cobra.Command {
	app := &appState{
		model:          "small",
		language:       "auto",
		autoDownload:   true,
		chunkThreshold: 5 * time.Minute,
		chunkOverlap:   transcribe.DefaultChunkOverlap,
		silenceDBFS:    -65,
		out:            os.Stdout,
	}

	cmd := &cobra.Command{
		Use:           "transcriber <input-file>",
		Short:         "Transcribe audio and video files with a local whisper engine",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.applyConfigFile(cmd); err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{Verbose: app.verbose, Quiet: app.quiet, JSON: app.jsonLogs})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runTranscribe(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	bindModelFlags(cmd, app)
	bindPipelineFlags(cmd, app)
	cmd.Flags().StringVarP(&app.output, "output", "o", app.output, "Output transcript file (default: input path with .txt extension)")
	cmd.Flags().BoolVar(&app.copyOutput, "copy", false, "Copy the transcript to the clipboard")

	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newModelsCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.Flags().BoolVarP(&app.quiet, "quiet", "q", app.quiet, "Only log warnings and errors")
	cmd.Flags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	cmd.Flags().StringVar(&app.configPath, "config", app.configPath, "Path to the defaults file (default: per-OS config dir)")
}

func bindProgressFlag(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.model, "model", app.model, "Model tier (tiny|base|small|medium|large) or path to a ggml .bin file")
	cmd.Flags().StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where model weights are stored")
	cmd.Flags().BoolVar(&app.autoDownload, "auto-download", app.autoDownload, "Automatically download missing model weights")
}

func bindPipelineFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.language, "language", app.language, "Language code (auto|en|de|...) for transcription")
	cmd.Flags().BoolVar(&app.translate, "translate", app.translate, "Translate the transcript to English regardless of the spoken language")
	cmd.Flags().BoolVar(&app.timestamps, "timestamps", app.timestamps, "Write one [HH:MM:SS] line per spoken segment instead of plain text")
	cmd.Flags().BoolVar(&app.noGPU, "no-gpu", app.noGPU, "Run the model on the CPU even when a GPU is available")
	cmd.Flags().DurationVar(&app.chunkThreshold, "chunk-threshold", app.chunkThreshold, "Split inputs longer than this into windows; 0 disables chunking")
	cmd.Flags().DurationVar(&app.chunkOverlap, "chunk-overlap", app.chunkOverlap, "Window overlap at chunk boundaries")
	cmd.Flags().Float64Var(&app.silenceDBFS, "silence-threshold-dbfs", app.silenceDBFS, "Skip recognition of audio quieter than this; 0 disables the gate")
	cmd.Flags().BoolVar(&app.copyEmpty, "copy-empty", app.copyEmpty, "Copy blank transcripts to the clipboard")
}

// applyConfigFile fills in defaults from the YAML config for every setting
// the user did not pass as a flag.
func (a *appState) applyConfigFile(cmd *cobra.Command) error {
	path := a.configPath
	if path == "" {
		resolved, err := platform.ResolveConfigFile()
		if err != nil {
			// No resolvable config location is fine; flags and built-in
			// defaults still apply.
			return nil
		}
		path = resolved
	}

	defaults, err := config.Load(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if defaults.Model != "" && !flags.Changed("model") {
		a.model = defaults.Model
	}
	if defaults.ModelDir != "" && !flags.Changed("model-dir") {
		a.modelDir = defaults.ModelDir
	}
	if defaults.Language != "" && !flags.Changed("language") {
		a.language = defaults.Language
	}
	if defaults.NoGPU && !flags.Changed("no-gpu") {
		a.noGPU = true
	}
	if defaults.Translate && !flags.Changed("translate") {
		a.translate = true
	}
	if defaults.Timestamps && !flags.Changed("timestamps") {
		a.timestamps = true
	}
	if defaults.AutoDownload != nil && !flags.Changed("auto-download") {
		a.autoDownload = *defaults.AutoDownload
	}
	if defaults.ChunkThreshold > 0 && !flags.Changed("chunk-threshold") {
		a.chunkThreshold = defaults.ChunkThreshold.Std()
	}
	if defaults.ChunkOverlap > 0 && !flags.Changed("chunk-overlap") {
		a.chunkOverlap = defaults.ChunkOverlap.Std()
	}
	if defaults.SilenceDBFS != 0 && !flags.Changed("silence-threshold-dbfs") {
		a.silenceDBFS = defaults.SilenceDBFS
	}

	return nil
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.modelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) outWriter() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}
