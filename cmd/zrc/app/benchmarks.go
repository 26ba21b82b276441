package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"zerospeech.io/zrc/pkg/benchmark"
)

func NewBenchmarksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "benchmarks",
		Short:        "list the available benchmarks",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Sets", "Tasks"})
			for _, name := range benchmark.Names() {
				b, err := benchmark.Get(name)
				if err != nil {
					return err
				}
				t.AppendRow(table.Row{b.Name(), b.Sets(), b.Tasks()})
			}
			t.Render()
			return nil
		},
	}
	cmd.AddCommand(newBenchmarksInfoCmd())
	cmd.AddCommand(newBenchmarksRunCmd())
	cmd.AddCommand(newBenchmarksParamsCmd())
	return cmd
}

func newBenchmarksInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "info <name>",
		Short:        "describe a benchmark",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("exactly one argument is required")
			}
			b, err := benchmark.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s\n", b.Name(), b.Doc())
			return nil
		},
	}
}

func newBenchmarksRunCmd() *cobra.Command {
	opts := benchmark.RunOptions{}
	skipValidation := false
	cmd := &cobra.Command{
		Use:          "run <name> <submission-dir>",
		Short:        "validate and score a submission",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) != 2 {
				return errors.New("exactly two arguments are required")
			}
			b, err := benchmark.Get(args[0])
			if err != nil {
				return err
			}
			dir := args[1]

			if !skipValidation {
				responses, err := b.Validate(ctx, dir, opts)
				if err != nil {
					return err
				}
				if benchmark.HasErrors(responses) {
					benchmark.ShowErrors(os.Stderr, responses)
					return fmt.Errorf("submission %s is not valid", dir)
				}
			}
			if err := b.Run(ctx, dir, opts); err != nil {
				return err
			}
			if !opts.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s scored, results written\n", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&opts.Sets, "sets", "s", nil, "restrict to evaluation sets (default all)")
	cmd.Flags().StringSliceVarP(&opts.Tasks, "tasks", "t", nil, "restrict to tasks (default all)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "score output directory (default <submission>/scores)")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "no progress output")
	cmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "score without validating first")
	return cmd
}

func newBenchmarksParamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "params <name> <submission-dir>",
		Short:        "write default run parameters into a submission",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return errors.New("exactly two arguments are required")
			}
			b, err := benchmark.Get(args[0])
			if err != nil {
				return err
			}
			if err := b.WriteParams(args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", benchmark.ParamsFile(args[1]))
			return nil
		},
	}
}
