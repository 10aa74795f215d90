package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ehr/labengine/internal/config"
	"github.com/ehr/labengine/internal/labengine"
)

// tableFromFlags resolves the guideline table for offline commands the same
// way serve does: the --guidelines flag, then GUIDELINES_FILE from the
// environment or .env, then the embedded table.
func tableFromFlags(cmd *cobra.Command) (*labengine.Table, error) {
	path, _ := cmd.Flags().GetString("guidelines")
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		path = cfg.GuidelinesFile
	}
	return loadTable(path)
}

func interpretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interpret",
		Short: "Interpret a single lab value",
		Example: `  lab-engine interpret --test "HbA1c" --value 6.1
  lab-engine interpret --test K+ --value 7.2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			test, _ := cmd.Flags().GetString("test")
			value, _ := cmd.Flags().GetString("value")

			table, err := tableFromFlags(cmd)
			if err != nil {
				return err
			}
			res := labengine.New(table).InterpretSpecificTest(test, value)
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("no guideline for %q", test)
			}
			return nil
		},
	}
	cmd.Flags().String("test", "", "test name as written on the report")
	cmd.Flags().String("value", "", "result value")
	_ = cmd.MarkFlagRequired("test")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func guidelinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guidelines",
		Short: "Inspect and validate guideline tables",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every guideline with its normal range",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := tableFromFlags(cmd)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tNAME\tUNIT\tNORMAL")
			for _, g := range table.Guidelines() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.Key, g.Name, g.Unit, g.NormalRange())
			}
			return w.Flush()
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a guideline table for structural errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			var (
				table *labengine.Table
				err   error
			)
			if path != "" {
				table, err = labengine.LoadTableFile(path)
			} else {
				table, err = tableFromFlags(cmd)
			}

			out := cmd.OutOrStdout()
			var verr *labengine.ValidationError
			if errors.As(err, &verr) {
				for _, p := range verr.Problems {
					fmt.Fprintf(out, "invalid: %s\n", p)
				}
				return fmt.Errorf("%d problem(s) in guideline table", len(verr.Problems))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "ok: %d guidelines, %d aliases\n", table.Len(), len(table.Aliases()))
			return nil
		},
	}
	validateCmd.Flags().String("file", "", "guideline table to validate")

	cmd.AddCommand(listCmd, validateCmd)
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
