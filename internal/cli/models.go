package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RCR0101/transcriber/internal/media"
	"github.com/RCR0101/transcriber/internal/transcribe"
	"github.com/RCR0101/transcriber/internal/whisper"
	"github.com/spf13/cobra"
)

func newModelsCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List model tiers, install state and collaborator diagnostics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Model directory: %s\n\n", modelDir)
			for _, tier := range transcribe.Tiers() {
				model, ok := whisper.LookupModel(tier)
				if !ok {
					continue
				}

				state := "not downloaded"
				path := filepath.Join(modelDir, model.FileName)
				if info, err := os.Stat(path); err == nil {
					state = fmt.Sprintf("installed (%d MiB)", info.Size()/(1<<20))
				}
				fmt.Fprintf(out, "%-8s %-20s %s\n", tier, model.FileName, state)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Collaborators:")

			decoder := media.NewFFmpegDecoder(app.log())
			if err := decoder.Available(); err != nil {
				fmt.Fprintf(out, "  ffmpeg:      unavailable (%v)\n", err)
			} else {
				fmt.Fprintln(out, "  ffmpeg:      ok")
			}

			if engine, err := whisper.NewEngine(app.log()); err != nil {
				fmt.Fprintf(out, "  whisper-cli: unavailable (%v)\n", err)
			} else {
				fmt.Fprintf(out, "  whisper-cli: ok (%s)\n", engine.Executable)
			}

			return nil
		},
	}

	bindLoggingFlags(cmd, app)
	bindModelFlags(cmd, app)

	return cmd
}
