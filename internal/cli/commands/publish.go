package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/dynres/internal/cli/ui"
	"github.com/conduit-lang/dynres/pkg/metadata"
)

func newPublishCommand(a *app) *cobra.Command {
	var service, version string

	cmd := &cobra.Command{
		Use:   "publish <file>",
		Short: "Store a service document in the configured SQL source",
		Long: `Store a JSON or YAML service document in the metadata database.

The service and API version come from the file name (sqs-2012-11-05.json)
unless --service and --api-version are given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if service == "" || version == "" {
				svc, ver, ok := metadata.ParseFileName(filepath.Base(path))
				if !ok {
					return fmt.Errorf("cannot derive service and version from %s; use --service and --api-version", path)
				}
				if service == "" {
					service = svc
				}
				if version == "" {
					version = ver
				}
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			desc, err := metadata.Decode(raw, metadata.FormatFromPath(path))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			document, err := metadata.Encode(desc)
			if err != nil {
				return err
			}

			env, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			if env.sql == nil {
				return errors.New("no SQL source configured; set metadata.sql.dsn")
			}
			if err := env.sql.Put(cmd.Context(), service, version, document); err != nil {
				return err
			}

			// Drop cached documents so the next load sees the new version
			if env.cache != nil {
				if _, err := env.cache.InvalidateService(cmd.Context(), service); err != nil {
					env.logger.Warn("failed to drop cached documents", zap.String("service", service), zap.Error(err))
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatSuccess(fmt.Sprintf("published %s %s", service, version), a.noColor))
			return nil
		},
	}

	cmd.Flags().StringVar(&service, "service", "", "service name (default from file name)")
	cmd.Flags().StringVar(&version, "api-version", "", "API version (default from file name)")
	return cmd
}
