package cli

import (
	"context"
	"fmt"

	"github.com/mkessel/trident/internal/models"
	"github.com/mkessel/trident/internal/service"
	"github.com/spf13/cobra"
)

var (
	ingestURL       string
	ingestText      string
	ingestName      string
	ingestRecursive bool
	ingestSkipGraph bool
	ingestFollow    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest documents into the indexes",
	Long: `Ingest documents from a directory, a single file, a web page, or
inline text. The job runs asynchronously; with --follow (default) a live
progress display polls it until completion.

Examples:
  trident ingest ./docs --recursive
  trident ingest --url https://example.com/page
  trident ingest --text "Some inline note" --name my-note
  trident ingest ./docs --skip-graph`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "ingest a web page instead of a path")
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "ingest inline text instead of a path")
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "display name for url/text sources")
	ingestCmd.Flags().BoolVarP(&ingestRecursive, "recursive", "r", false, "process subdirectories")
	ingestCmd.Flags().BoolVar(&ingestSkipGraph, "skip-graph", false, "skip knowledge-graph extraction for this run")
	ingestCmd.Flags().BoolVar(&ingestFollow, "follow", true, "show live progress until the job finishes")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	req := service.IngestRequest{
		Name:      ingestName,
		Recursive: ingestRecursive,
		SkipGraph: ingestSkipGraph,
	}
	switch {
	case ingestURL != "":
		req.Source = models.SourceWeb
		req.URL = ingestURL
	case ingestText != "":
		req.Source = models.SourceText
		req.Text = ingestText
	case len(args) == 1:
		req.Source = models.SourceFilesystem
		req.Path = args[0]
	default:
		return fmt.Errorf("provide a path, --url or --text")
	}

	s, err := getService(ctx, true)
	if err != nil {
		return err
	}

	jobID, err := s.SubmitIngestion(ctx, req)
	if err != nil {
		return err
	}

	if !ingestFollow {
		fmt.Printf("Job %s started. Use 'trident jobs %s' to check status.\n", jobID, jobID)
		return nil
	}

	return RunJobProgress(s.Jobs(), jobID)
}
