package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/rcliao/changelogged/internal/reconcile"
)

// UploadPrompt is the question asked before any page is written.
const UploadPrompt = "Upload page changes to wiki?"

// PromptConfirmer asks on the terminal before the write phase. It
// implements reconcile.Confirmer.
type PromptConfirmer struct {
	// AssumeYes approves without asking.
	AssumeYes bool
	// Interactive reports whether a prompt can be shown.
	Interactive bool
	// Out receives the notice printed when no prompt can be shown.
	Out io.Writer

	ask func(ctx context.Context, title, description string) (bool, error)
}

// NewPromptConfirmer returns a confirmer that prompts when stdin and stdout
// are terminals.
func NewPromptConfirmer(assumeYes bool) *PromptConfirmer {
	return &PromptConfirmer{
		AssumeYes:   assumeYes,
		Interactive: IsInteractive(),
		Out:         os.Stderr,
	}
}

// IsInteractive reports whether both stdin and stdout are terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func (c *PromptConfirmer) Confirm(ctx context.Context, plan *reconcile.Plan) (bool, error) {
	if c.AssumeYes {
		return true, nil
	}
	if !c.Interactive {
		if c.Out != nil {
			fmt.Fprintln(c.Out, "Not a terminal; pass --yes to upload without a prompt.")
		}
		return false, nil
	}

	ask := c.ask
	if ask == nil {
		ask = askHuh
	}
	desc := fmt.Sprintf("%d page(s) will be updated to %s.", len(plan.Pending()), plan.Latest.Label)
	ok, err := ask(ctx, UploadPrompt, desc)
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

func askHuh(ctx context.Context, title, description string) (bool, error) {
	ok := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Upload").
				Negative("Cancel").
				Value(&ok),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return false, err
	}
	return ok, nil
}
