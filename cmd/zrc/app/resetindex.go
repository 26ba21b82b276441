package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"zerospeech.io/zrc/pkg/resource"
	"zerospeech.io/zrc/pkg/types"
)

func NewResetIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "reset-index",
		Short:        "refresh the cached repository index",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			dir, err := resource.Load(types.KindDataset)
			if err != nil {
				return err
			}
			index, err := dir.UpdateIndex(ctx)
			if err != nil {
				return err
			}
			total := len(index.Datasets) + len(index.Checkpoints) + len(index.Samples)
			fmt.Fprintf(cmd.OutOrStdout(), "index refreshed, %d items listed\n", total)
			return nil
		},
	}
}
