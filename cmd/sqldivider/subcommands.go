package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bawdo/sqldivider/binding"
	"github.com/bawdo/sqldivider/decompose"
)

// newBindCmd binds parameters into a template without a database.
func newBindCmd() *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "bind <template>",
		Short: "Substitute parameters into a SQL template",
		Example: `  sqldivider bind "select * from t where id = #{id}" -p id=5
  sqldivider --pattern jpa bind "select * from t where id = :id" -p id=5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd.Context())
			store := binding.NewStore()
			for _, p := range params {
				name, value, ok := strings.Cut(p, "=")
				if !ok || name == "" {
					return fmt.Errorf("invalid parameter %q (want name=value)", p)
				}
				store.Add(binding.Parameter{Name: name, Value: value})
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), binding.Bind(args[0], cfg.BindPattern(), store.List()))
			return err
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "parameter as name=value (repeatable)")
	return cmd
}

// newSplitCmd prints the WITH clauses and SELECT statements of a template.
func newSplitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split <template>",
		Short: "Split a SQL template into its WITH and SELECT statements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := decompose.Split(args[0])
			if err != nil {
				return err
			}
			renderStatements(cmd.OutOrStdout(), set, func(s string) string { return s })
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sqldivider v%s\n", Version)
		},
	}
}
