package cli

import (
	"github.com/spf13/cobra"
)

func newProceduresCommand(opts *globalOptions) *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "procedures",
		Short: "List stored procedures and their parameter schemas",
		Example: `  # List every procedure
  sqlconnector procedures

  # List procedures whose name starts with DEMO (case-insensitive)
  sqlconnector procedures --pattern demo`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, cmd, opts, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.introspector == nil {
				return errNoDatasource
			}
			meta, err := rt.metadata.DiscoverProcedures(ctx, pattern)
			if err != nil {
				return err
			}
			return printJSON(cmd, meta)
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "Procedure name prefix")
	return cmd
}
