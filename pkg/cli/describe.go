package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/services"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sql"
)

// DescribeOptions holds options for the describe command.
type DescribeOptions struct {
	SQL       string
	Batch     bool
	Procedure string
	Samples   map[string]string
	Offline   bool
	Style     string
}

func newDescribeCommand(opts *globalOptions) *cobra.Command {
	dopts := &DescribeOptions{}

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe a statement's parameters and result shape",
		Long: `Parse a statement with :#name parameters, resolve its types against the
configured datasource and print the metadata as JSON.

With --offline no datasource is contacted: the statement is only parsed and
rewritten, and every parameter is reported as "any".`,
		Example: `  # Describe a query
  sqlconnector describe --sql "SELECT street FROM ADDRESS WHERE number = :#number"

  # Describe a batch insert
  sqlconnector describe --batch --sql "INSERT INTO ADDRESS (street) VALUES (:#street)"

  # Describe a stored procedure's parameters
  sqlconnector describe --procedure DEMO_ADD

  # Rewrite for PostgreSQL without a database
  sqlconnector describe --offline --style dollar --sql "SELECT * FROM T WHERE a = :#a"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDescribe(cmd, opts, dopts)
		},
	}

	cmd.Flags().StringVar(&dopts.SQL, "sql", "", "Statement to describe")
	cmd.Flags().BoolVar(&dopts.Batch, "batch", false, "Treat the statement as a batch update")
	cmd.Flags().StringVar(&dopts.Procedure, "procedure", "", "Describe a stored procedure instead of a statement")
	cmd.Flags().StringToStringVar(&dopts.Samples, "sample", nil, "Sample value for a parameter (name=value, repeatable)")
	cmd.Flags().BoolVar(&dopts.Offline, "offline", false, "Parse and rewrite only, without a datasource")
	cmd.Flags().StringVar(&dopts.Style, "style", "", "Placeholder style for --offline: question, dollar or atp (default from config)")

	return cmd
}

func runDescribe(cmd *cobra.Command, opts *globalOptions, dopts *DescribeOptions) error {
	if dopts.SQL == "" && dopts.Procedure == "" {
		return fmt.Errorf("one of --sql or --procedure is required")
	}

	ctx := cmd.Context()
	rt, err := openRuntime(ctx, cmd, opts, !dopts.Offline)
	if err != nil {
		return err
	}
	defer rt.Close()

	req := services.DescribeRequest{
		SQL:       dopts.SQL,
		IsBatch:   dopts.Batch,
		Procedure: dopts.Procedure,
	}
	if len(dopts.Samples) > 0 {
		req.Samples = make(map[string]any, len(dopts.Samples))
		for k, v := range dopts.Samples {
			req.Samples[k] = v
		}
	}

	if dopts.Offline {
		if dopts.SQL == "" {
			return fmt.Errorf("--offline requires --sql")
		}
		style, err := rt.cfg.Style()
		if err != nil {
			return err
		}
		if dopts.Style != "" {
			if style, err = sql.ParsePlaceholderStyle(dopts.Style); err != nil {
				return err
			}
		}
		meta, err := rt.metadata.Rewrite(req, style)
		if err != nil {
			return err
		}
		return printJSON(cmd, meta)
	}

	if rt.introspector == nil {
		return fmt.Errorf("%w; use --offline to rewrite without one", errNoDatasource)
	}
	meta, err := rt.metadata.Describe(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(cmd, meta)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
