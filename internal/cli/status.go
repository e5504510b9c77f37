package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/changelogged/internal/config"
	"github.com/rcliao/changelogged/internal/reconcile"
	"github.com/rcliao/changelogged/internal/ui"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which pages need a history update",
		Long:  "Plans every page referenced by the changelog and prints the overview. Never writes.",
		Run:   runStatus,
	}

	RootCmd.AddCommand(cmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig(false)
	b := openBackend(cfg)
	defer b.Close()

	showPlan(cmd, cfg, newDriver(cfg, b))
}

type pageStatusJSON struct {
	Page     string `json:"page"`
	Status   string `json:"status"`
	Changes  int    `json:"changes"`
	Recorded string `json:"recorded,omitempty"`
	Error    string `json:"error,omitempty"`
}

// showPlan plans without writing and prints the result in the chosen format.
func showPlan(cmd *cobra.Command, cfg config.Config, d *reconcile.Driver) {
	if formatFlag == "json" {
		d.Observer = nil
	}
	plan, err := d.Plan(cmd.Context())
	if err != nil {
		exitErr("plan", err)
	}

	if formatFlag == "json" {
		out := make([]pageStatusJSON, 0, len(plan.Reports))
		for _, r := range plan.Reports {
			p := pageStatusJSON{Page: r.Page, Changes: r.Changes}
			if r.Err != nil {
				p.Status = "fetchFailed"
				p.Error = r.Err.Error()
			} else {
				p.Status = r.Status.String()
				if r.HasRecorded {
					if v, ok := plan.Timeline.At(r.RecordedOrdinal); ok {
						p.Recorded = v.Label
					}
				}
			}
			out = append(out, p)
		}
		b, _ := json.MarshalIndent(map[string]any{
			"latest": plan.Latest.Label,
			"pages":  out,
		}, "", "  ")
		fmt.Println(string(b))
		return
	}

	ui.RenderOverview(os.Stdout, plan, overviewOptions(cfg))
	ui.RenderSummary(os.Stdout, plan)
}
