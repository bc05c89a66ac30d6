package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RCR0101/transcriber/internal/transcribe"
	"github.com/RCR0101/transcriber/internal/watch"
	"github.com/spf13/cobra"
)

func newWatchCmd(app *appState) *cobra.Command {
	var settle time.Duration
	var outputDir string

	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a directory and transcribe new media files as they appear",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("watch directory: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}

			handler, err := app.buildHandler()
			if err != nil {
				return err
			}

			worker := transcribe.NewWorker(handler, app.log(), 16)

			build := func(source string) (transcribe.Request, error) {
				destination := ""
				if outputDir != "" {
					destination = destinationInDir(source, outputDir)
				}
				tier := transcribe.TierSmall
				if parsed, err := transcribe.ParseTier(app.model); err == nil {
					tier = parsed
				}
				return transcribe.NewRequest(source, transcribe.RequestOptions{
					Destination:    destination,
					Tier:           tier,
					Acceleration:   !app.noGPU,
					Language:       app.language,
					Translate:      app.translate,
					Timestamps:     app.timestamps,
					ChunkThreshold: app.chunkThreshold,
					ChunkOverlap:   app.chunkOverlap,
				})
			}

			watcher, err := watch.New(dir, worker, build, app.log(), settle)
			if err != nil {
				return err
			}
			defer watcher.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go worker.Run(ctx)

			reportDone := make(chan struct{})
			go func() {
				defer close(reportDone)
				for outcome := range worker.Outcomes() {
					if outcome.Status == transcribe.JobFailed {
						fmt.Fprintf(cmd.ErrOrStderr(), "failed: %v\n", outcome.Err)
						continue
					}
					fmt.Fprintln(cmd.OutOrStdout(), outcome.Result.Destination)
				}
			}()

			err = watcher.Run(ctx)
			cancel()
			worker.Wait()
			<-reportDone

			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	bindLoggingFlags(cmd, app)
	bindModelFlags(cmd, app)
	bindPipelineFlags(cmd, app)
	cmd.Flags().DurationVar(&settle, "settle", 2*time.Second, "How long a new file must be unchanged before transcription starts")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Write transcripts into this directory instead of next to the source")

	return cmd
}

func destinationInDir(source, dir string) string {
	base := filepath.Base(source)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ".txt"
	return filepath.Join(dir, name)
}
