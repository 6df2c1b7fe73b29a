package commands

import (
	"github.com/spf13/cobra"

	"github.com/conduit-lang/dynres/internal/cli/ui"
	"github.com/conduit-lang/dynres/pkg/metadata"
)

func newVersionsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <service>",
		Short: "List the API versions available for a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			service := args[0]
			versions, err := env.store.Versions(cmd.Context(), service)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				return &metadata.MetadataNotFoundError{Service: service}
			}

			pinned := env.store.PinnedVersion(service)
			selected, _ := metadata.BestMatch(versions, pinned)

			table := ui.NewTable(cmd.OutOrStdout(), a.noColor, "VERSION", "STATUS")
			for i := len(versions) - 1; i >= 0; i-- {
				status := ""
				switch {
				case versions[i] == selected && pinned != "":
					status = "selected (pinned " + pinned + ")"
				case versions[i] == selected:
					status = "selected"
				}
				table.AddRow(versions[i], status)
			}
			table.Render()
			return nil
		},
	}
}
