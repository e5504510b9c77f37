package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/changelogged/internal/ui"
)

func init() {
	cmd := &cobra.Command{
		Use:   "preview <page>",
		Short: "Print the text a sync would save for one page",
		Long:  "Classifies a single page and prints its spliced wikitext to stdout. Nothing is written.",
		Args:  cobra.ExactArgs(1),
		Run:   runPreview,
	}

	RootCmd.AddCommand(cmd)
}

func runPreview(cmd *cobra.Command, args []string) {
	cfg := loadConfig(false)
	b := openBackend(cfg)
	defer b.Close()

	d := newDriver(cfg, b)
	d.Observer = nil

	r, text, err := d.Preview(cmd.Context(), args[0])
	if err != nil {
		exitErr("preview", err)
	}
	fmt.Fprintf(os.Stderr, "%s: %s (%d changes)\n", r.Page, ui.StatusLabel(r.Status), r.Changes)
	if text != "" {
		fmt.Print(text)
	}
}
