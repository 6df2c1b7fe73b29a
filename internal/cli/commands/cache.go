package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/dynres/internal/cache"
	"github.com/conduit-lang/dynres/internal/cli/ui"
)

func newCacheCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the shared metadata cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			if env.cache == nil {
				fmt.Fprintln(cmd.OutOrStdout(), ui.FormatSuccess("no shared cache configured", a.noColor))
				return nil
			}
			n, err := env.cache.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatSuccess(fmt.Sprintf("cache cleared (%d documents)", n), a.noColor))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status <service>",
		Short: "Report whether a service document is cached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			if env.cache == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no shared cache configured")
				return nil
			}

			selector := env.store.PinnedVersion(args[0])
			if selector == "" {
				selector = cache.Latest
			}
			selectors, err := env.cache.Selectors(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			versions := "-"
			if len(selectors) > 0 {
				versions = strings.Join(selectors, ", ")
			}

			kv := ui.NewKeyValueTable(cmd.OutOrStdout(), a.noColor)
			kv.AddRow("backend", env.cfg.Cache.Backend)
			kv.AddRow("key", env.cache.Key(args[0], selector))
			kv.AddRow("cached", fmt.Sprint(slices.Contains(selectors, selector)))
			kv.AddRow("versions", versions)
			kv.Render()
			return nil
		},
	})

	return cmd
}
