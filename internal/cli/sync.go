package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/changelogged/internal/reconcile"
	"github.com/rcliao/changelogged/internal/ui"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Rewrite stale history sections",
		Long: "Plans every page referenced by the changelog, shows the overview, asks for confirmation " +
			"and writes each page that needs a new or updated history section. Exits non-zero if any page fails.",
		Run: runSync,
	}

	cmd.Flags().BoolP("yes", "y", false, "Upload without asking")
	cmd.Flags().Bool("dry-run", false, "Show the overview and stop")

	RootCmd.AddCommand(cmd)
}

func runSync(cmd *cobra.Command, args []string) {
	yes, _ := cmd.Flags().GetBool("yes")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg := loadConfig(!dryRun)
	b := openBackend(cfg)
	defer b.Close()

	d := newDriver(cfg, b)
	if dryRun {
		showPlan(cmd, cfg, d)
		return
	}

	d.OnPlan = func(p *reconcile.Plan) {
		ui.RenderOverview(os.Stdout, p, overviewOptions(cfg))
	}
	d.Confirmer = ui.NewPromptConfirmer(yes)

	started := time.Now().UTC()
	res, err := d.Run(cmd.Context())
	if err != nil {
		exitErr("sync", err)
	}
	ui.RenderOutcomes(os.Stdout, res)

	if !res.NoOp {
		b.recordRun(cmd.Context(), res.Record(started, time.Now().UTC()))
	}
	if n := closeOnFailure(b, res); n > 0 {
		fmt.Fprintf(os.Stderr, "error: %d page(s) failed\n", n)
		os.Exit(1)
	}
}

// closeOnFailure closes b when res has failed pages, since the caller is
// about to exit without running its deferred Close. It returns the number
// of failed pages.
func closeOnFailure(b *backend, res *reconcile.Result) int {
	n := len(res.Failed())
	if n > 0 {
		b.Close()
	}
	return n
}
