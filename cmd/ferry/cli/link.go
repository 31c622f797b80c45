package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/ferry"
)

var (
	linkFolder   string
	linkSHA1     string
	linkHTTPOnly bool
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Request an upload link",
	Long: `Link requests a one-shot upload URL from the hosting service and prints it.

The URL accepts a single multipart upload with the file in the "upfile"
field, for example with curl.

Examples:
  ferry link
  ferry link --folder 5143`,
	Args: cobra.NoArgs,
	RunE: runLink,
}

func init() {
	linkCmd.Flags().StringVar(&linkFolder, "folder", "", "Destination folder ID (default home folder)")
	linkCmd.Flags().StringVar(&linkSHA1, "sha1", "", "Expected SHA-1 of the file to be uploaded")
	linkCmd.Flags().BoolVar(&linkHTTPOnly, "http-only", false, "Request a plain HTTP upload link")
	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, _ []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	link, err := client.UploadLink(ctx,
		ferry.WithFolder(linkFolder),
		ferry.WithSHA1(linkSHA1),
		ferry.WithHTTPOnly(linkHTTPOnly),
	)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, link.URL)
	if link.ValidUntil != "" {
		fmt.Fprintf(out, "valid until: %s\n", link.ValidUntil)
	}
	return nil
}
