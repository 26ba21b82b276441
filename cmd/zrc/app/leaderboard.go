package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"zerospeech.io/zrc/pkg/leaderboard"
	"zerospeech.io/zrc/pkg/submission"
	"zerospeech.io/zrc/pkg/types"
)

func NewLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "leaderboard <benchmark>",
		Short:        "show the leaderboard of a benchmark",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) != 1 {
				return errors.New("exactly one argument is required")
			}
			board, err := anonymousClient().GetLeaderboard(ctx, args[0])
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Rank", "Submitter", "System", "Overall", "Submitted"})
			for i, entry := range board.Entries {
				t.AppendRow(table.Row{
					i + 1,
					entry.Submitter,
					entry.System,
					fmt.Sprintf("%.4f", entry.Overall),
					entry.Submitted.Format("2006-01-02"),
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.AddCommand(newLeaderboardGenerateCmd())
	cmd.AddCommand(newLeaderboardUploadCmd())
	return cmd
}

func newLeaderboardGenerateCmd() *cobra.Command {
	output := ""
	cmd := &cobra.Command{
		Use:          "generate <score-dir>",
		Short:        "build a leaderboard entry from a scored submission",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("exactly one argument is required")
			}
			sd, err := submission.LoadScoreDir(args[0])
			if err != nil {
				return err
			}
			entry, err := leaderboard.GenerateEntry(sd, time.Now())
			if err != nil {
				return err
			}
			content, err := json.MarshalIndent(entry, "", "  ")
			if err != nil {
				return err
			}
			if output == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(content))
				return nil
			}
			if err := os.WriteFile(output, content, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", output, "write the entry to a file instead of stdout")
	return cmd
}

func newLeaderboardUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "upload <entry.json>",
		Short:        "publish a leaderboard entry to the challenge server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) != 1 {
				return errors.New("exactly one argument is required")
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			entry := types.LeaderboardEntry{}
			if err := json.Unmarshal(content, &entry); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			session, err := DefaultSessionManager.Get()
			if err != nil {
				return err
			}
			if entry.Submitter == "" {
				entry.Submitter = session.Username
			}
			if err := session.Client().PutLeaderboardEntry(ctx, entry); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published entry for %s on %s\n", entry.Submitter, entry.Benchmark)
			return nil
		},
	}
}
