package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"zerospeech.io/zrc/pkg/client/units"
	"zerospeech.io/zrc/pkg/resource"
	"zerospeech.io/zrc/pkg/types"
)

// NewResourceCmd builds the command group for one resource kind: listing,
// pull and rm. All three kinds share the same behaviour.
func NewResourceCmd(kind types.ResourceKind, what string) *cobra.Command {
	localOnly := false
	cmd := &cobra.Command{
		Use:          string(kind),
		Short:        fmt.Sprintf("list %s", what),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()

			dir, err := resource.Load(kind)
			if err != nil {
				return err
			}
			var items []resource.Item
			if localOnly {
				items, err = dir.Installed(ctx)
			} else {
				items, err = dir.Available(ctx)
			}
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Origin", "Size", "Installed"})
			for _, item := range items {
				t.AppendRow(table.Row{
					item.Name,
					item.OriginHost(),
					units.HumanSize(float64(item.Size)),
					item.Installed,
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&localOnly, "local", localOnly, "only show installed items")

	cmd.AddCommand(newResourcePullCmd(kind, what))
	cmd.AddCommand(newResourceRmCmd(kind, what))
	return cmd
}

func newResourcePullCmd(kind types.ResourceKind, what string) *cobra.Command {
	quiet := false
	cmd := &cobra.Command{
		Use:          "pull <name>...",
		Short:        fmt.Sprintf("download and install %s", what),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) == 0 {
				return errors.New("at least one argument is required")
			}
			dir, err := resource.Load(kind)
			if err != nil {
				return err
			}
			for _, name := range args {
				if err := dir.Pull(ctx, name, quiet); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", quiet, "no progress output")
	return cmd
}

func newResourceRmCmd(kind types.ResourceKind, what string) *cobra.Command {
	return &cobra.Command{
		Use:          "rm <name>...",
		Short:        fmt.Sprintf("remove installed %s", what),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) == 0 {
				return errors.New("at least one argument is required")
			}
			dir, err := resource.Load(kind)
			if err != nil {
				return err
			}
			for _, name := range args {
				if err := dir.Uninstall(ctx, name); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "removed %s %s\n", kind, name)
			}
			return nil
		},
	}
}
