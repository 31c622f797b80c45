package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/ferry"
)

var (
	uploadFolder   string
	uploadSHA1     string
	uploadChecksum bool
	uploadHTTPOnly bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload files",
	Long: `Upload sends one or more files to the hosting service.

Files are uploaded by a fixed number of workers in the order given. Each
file is reported as done, failed or cancelled; the command fails unless
every file was uploaded. Press Ctrl-C to cancel uploads in flight.

Examples:
  ferry upload video.mp4
  ferry upload --folder 5143 --workers 4 *.mkv
  ferry upload --checksum --progress plain backup.tar`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadFolder, "folder", "", "Destination folder ID (default home folder)")
	uploadCmd.Flags().StringVar(&uploadSHA1, "sha1", "", "Expected SHA-1 of the file; the service rejects a mismatch")
	uploadCmd.Flags().BoolVar(&uploadChecksum, "checksum", false, "Compute each file's SHA-1 and have the service verify it")
	uploadCmd.Flags().BoolVar(&uploadHTTPOnly, "http-only", false, "Request plain HTTP upload links")
	uploadCmd.Flags().Int("workers", 0, "Number of concurrent uploads (default from config, 2)")
	uploadCmd.Flags().Int("chunk-size", 0, "Bytes sent between progress updates (default from config, 1 MiB)")
	uploadCmd.Flags().String("progress", "", "Progress output: auto, tty or plain")

	//nolint:errcheck // flags exist
	viper.BindPFlag("workers", uploadCmd.Flags().Lookup("workers"))
	//nolint:errcheck // flags exist
	viper.BindPFlag("chunk-size", uploadCmd.Flags().Lookup("chunk-size"))
	//nolint:errcheck // flags exist
	viper.BindPFlag("progress", uploadCmd.Flags().Lookup("progress"))

	//nolint:errcheck // flag exists
	uploadCmd.RegisterFlagCompletionFunc("progress", completeProgressModes)

	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if uploadSHA1 != "" && len(args) > 1 {
		return errors.New("--sha1 applies to a single file; use --checksum for several")
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	sink := newUploadSink(cmd.ErrOrStderr(), progressMode())
	batch, err := ferry.NewBatch(client, cfg.Workers,
		ferry.WithSink(sink),
		ferry.WithBatchLogger(logger),
		ferry.WithUploadOptions(
			ferry.WithFolder(uploadFolder),
			ferry.WithSHA1(uploadSHA1),
			ferry.WithChecksum(uploadChecksum),
			ferry.WithHTTPOnly(uploadHTTPOnly),
		),
	)
	if err != nil {
		return err
	}
	defer batch.Close()

	for _, path := range args {
		if _, err := batch.Add(path); err != nil {
			return err
		}
	}

	stop := context.AfterFunc(ctx, batch.CancelAll)
	defer stop()

	summary, err := batch.Wait(context.Background())
	sink.Close()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, job := range summary.Jobs {
		if job.State == ferry.JobDone && job.Result != nil {
			fmt.Fprintf(out, "%s\t%s\n", job.Path, job.Result.URL)
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !summary.OK() {
		return fmt.Errorf("%w: %d of %d failed, %d cancelled",
			errUploadsIncomplete, summary.Failed, len(summary.Jobs), summary.Cancelled)
	}
	return nil
}
