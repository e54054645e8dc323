package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [id]",
	Short: "List ingestion jobs or show one job's details",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJobs,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Request cancellation of a running ingestion job",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := getService(ctx, false)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		record, err := s.Jobs().Get(args[0])
		if err != nil {
			return err
		}
		jsonBytes, _ := json.MarshalIndent(record, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	records := s.Jobs().List()
	if len(records) == 0 {
		fmt.Println("No jobs.")
		return nil
	}
	for _, r := range records {
		fmt.Printf("%s  %-10s  %3d%%  %s\n", r.ID, r.Status, r.Progress, r.Message)
	}
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := getService(ctx, false)
	if err != nil {
		return err
	}
	if err := s.Jobs().Cancel(args[0]); err != nil {
		return err
	}
	fmt.Printf("Cancellation requested for job %s.\n", args[0])
	return nil
}
