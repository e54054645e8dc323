package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mkessel/trident/internal/service"
	"github.com/spf13/cobra"
)

var (
	askShowSources bool
	askOutputFile  string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and get a synthesized answer",
	Long: `Ask retrieves relevant content from every modality, fuses it, and
synthesizes an answer with the configured model.

Examples:
  trident ask "How does the ingestion pipeline handle failures?"
  trident ask "What depends on the billing service?" --sources`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askShowSources, "sources", false, "list the retrieved sources after the answer")
	askCmd.Flags().StringVarP(&askOutputFile, "output", "o", "", "write the answer to a file")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := getService(ctx, true)
	if err != nil {
		return err
	}

	answer, hits, err := s.Ask(ctx, args[0])
	if err != nil {
		if errors.Is(err, service.ErrNotInitialized) {
			fmt.Println("No indexed content yet. Run 'trident ingest' first.")
			return nil
		}
		return err
	}

	if askOutputFile != "" {
		if err := os.WriteFile(askOutputFile, []byte(answer+"\n"), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("Answer written to %s\n", askOutputFile)
	} else {
		fmt.Println(answer)
	}

	if askShowSources && len(hits) > 0 {
		fmt.Println()
		fmt.Println(metaStyle.Render("Sources:"))
		for i, h := range hits {
			fmt.Println(metaStyle.Render(fmt.Sprintf("  %d. %s (%s)", i+1, h.Name, h.Modality)))
		}
	}
	return nil
}
