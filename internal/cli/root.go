// Package cli implements the teachlink command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teachlink/client-core/internal/app"
	"github.com/teachlink/client-core/internal/cli/ui"
)

type options struct {
	plain bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "teachlink",
		Short:         "TeachLink client core: sessions, entitlements and a local dev API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.plain, "plain", false, "non-interactive output without terminal UI")

	cmd.AddCommand(newLoginCommand(opts))
	cmd.AddCommand(newLogoutCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newRefreshCommand(opts))
	cmd.AddCommand(newProductsCommand(opts))
	cmd.AddCommand(newPurchaseCommand(opts))
	cmd.AddCommand(newRestoreCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newDevServerCommand())
	return cmd
}

// run wires a fresh client core, executes op under the spinner (or plainly)
// and tears the core down again.
func (o *options) run(title string, op func(ctx context.Context, a *app.App) ([]string, error)) error {
	wrapped := func(ctx context.Context) ([]string, error) {
		a, err := app.New(ctx, app.Options{})
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := a.Close(context.Background()); cerr != nil {
				a.Logger.Warn("shutdown incomplete", "error", cerr)
			}
		}()
		return op(ctx, a)
	}

	var err error
	if o.plain {
		_, err = ui.RunPlain(title, wrapped)
	} else {
		_, err = ui.Run(title, wrapped)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", title, err)
	}
	return nil
}
