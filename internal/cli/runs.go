package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/changelogged/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded sync runs",
		Run:   runRuns,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Bool("failed", false, "Only runs with failed pages")

	RootCmd.AddCommand(cmd)
}

func runRuns(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	failed, _ := cmd.Flags().GetBool("failed")

	cfg := loadConfig(false)
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	runs, err := s.ListRuns(cmd.Context(), store.ListRunsParams{Limit: limit, FailedOnly: failed})
	if err != nil {
		exitErr("list runs", err)
	}

	if formatFlag == "text" {
		for _, r := range runs {
			state := fmt.Sprintf("%d/%d written, %d failed", r.Written, r.Pending, r.Failed)
			if r.Declined {
				state = "declined"
			}
			fmt.Printf("%s  %s  %-16s %s\n", r.ID, r.StartedAt.Local().Format(time.DateTime), r.Latest, state)
			for _, p := range r.Pages {
				if p.Error != "" {
					fmt.Printf("    %s: %s (%s)\n", p.Title, p.Outcome, p.Error)
				}
			}
		}
		return
	}

	b, _ := json.MarshalIndent(runs, "", "  ")
	fmt.Println(string(b))
}
