package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/changelogged/internal/mediawiki"
	"github.com/rcliao/changelogged/internal/reconcile"
	"github.com/rcliao/changelogged/internal/store"
	"github.com/rcliao/changelogged/internal/ui"
)

func init() {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Mirror the wiki's changelog and pages locally",
		Long: "Copies the Versions and Changes tables and every referenced page from the wiki into the " +
			"local database, replacing the mirrored tables. Use --backend local afterwards to work offline.",
		Run: runPull,
	}

	RootCmd.AddCommand(cmd)
}

func runPull(cmd *cobra.Command, args []string) {
	cfg := loadConfig(false)
	if cfg.APIURL == "" {
		exitErr("pull", fmt.Errorf("api_url is not set"))
	}

	client, err := mediawiki.New(cfg.MediaWiki())
	if err != nil {
		exitErr("wiki client", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	d := reconcile.New(client, client)
	d.Options = cfg.DriverOptions()
	d.Observer = ui.NewProgress(os.Stderr)

	snap, err := d.Snapshot(cmd.Context())
	if err != nil {
		exitErr("pull", err)
	}

	res, err := s.Import(cmd.Context(), store.ImportParams{Snapshot: *snap, Replace: true})
	if err != nil {
		exitErr("import", err)
	}

	b, _ := json.Marshal(struct {
		OK bool `json:"ok"`
		*store.ImportResult
	}{true, res})
	fmt.Println(string(b))
}
