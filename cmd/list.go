package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"probeharness/internal/registry"
	"probeharness/internal/schedule"
	"probeharness/internal/suite"
)

func newListCmd() *cobra.Command {
	var (
		methods    []string
		operations []string
		plan       bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the configuration matrix",
		Long: `List shows every (method, operation) configuration the suite would
cover, with the skip reason for methods unsupported in this environment.
With --plan, the discovered test cases are shown in execution order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			selectedMethods, err := suite.SelectMethods(methods)
			if err != nil {
				return err
			}
			// Listing must not require the tool binary; the image tag only
			// matters at execution time.
			selectedOperations, err := suite.SelectOperations(operations, registry.ImageRegistry(), "latest")
			if err != nil {
				return err
			}

			configs := registry.Matrix(selectedMethods, selectedOperations)
			if plan {
				return printPlan(cmd, configs)
			}
			printMatrix(cmd, configs)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&methods, "method", nil, "restrict to the named methods (repeatable)")
	cmd.Flags().StringSliceVar(&operations, "operation", nil, "restrict to the named operations (repeatable)")
	cmd.Flags().BoolVar(&plan, "plan", false, "show the discovered test cases in execution order")

	return cmd
}

func printMatrix(cmd *cobra.Command, configs []registry.Configuration) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Configuration", "Method", "Operation", "Access", "Status"})

	for _, config := range configs {
		access := "shared"
		if config.Method.Exclusive() {
			access = "exclusive"
		}
		status := "runnable"
		if reason := config.Method.Unsupported(); reason != "" {
			status = "skipped: " + reason
		}
		t.AppendRow(table.Row{config.Key(), config.Method.Name(), config.Operation.Name(), access, status})
	}

	t.SetStyle(table.StyleLight)
	t.Render()
}

// printPlan discovers the cases and runs them through the scheduler, showing
// the order execution would use. Bodies are never invoked, so no cluster
// connection is needed.
func printPlan(cmd *cobra.Command, configs []registry.Configuration) error {
	cases := suite.NewCatalog(nil).Discover(configs)
	ordered, err := schedule.Order(cases)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"#", "Test Case", "Configuration", "Phase"})
	for i, tc := range ordered {
		t.AppendRow(table.Row{i + 1, tc.Name, tc.Config.Key(), tc.Phase.String()})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}
