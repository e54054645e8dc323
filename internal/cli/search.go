package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mkessel/trident/internal/service"
	"github.com/spf13/cobra"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAFD7"))
	metaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed corpus across all modalities",
	Long: `Search runs the query against every modality with content (vector,
full-text, knowledge graph) and fuses the rankings into one result list.

Examples:
  trident search "connection pooling"
  trident search "who maintains the auth service"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := getService(ctx, true)
	if err != nil {
		return err
	}

	hits, err := s.Search(ctx, args[0])
	if err != nil {
		if errors.Is(err, service.ErrNotInitialized) {
			fmt.Println("No indexed content yet. Run 'trident ingest' first.")
			return nil
		}
		return err
	}
	if len(hits) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, h := range hits {
		header := fmt.Sprintf("%d. %s", i+1, h.Name)
		fmt.Println(titleStyle.Render(header))
		fmt.Println(metaStyle.Render(fmt.Sprintf("   %s  score %.4f", h.Modality, h.Score)))
		fmt.Printf("   %s\n\n", snippet(h.Text, 240))
	}
	return nil
}

// snippet trims text to one display line.
func snippet(text string, max int) string {
	s := strings.Join(strings.Fields(text), " ")
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
