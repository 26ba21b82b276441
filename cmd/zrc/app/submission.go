package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"zerospeech.io/zrc/pkg/benchmark"
	"zerospeech.io/zrc/pkg/settings"
	"zerospeech.io/zrc/pkg/submission"
	"zerospeech.io/zrc/pkg/types"
)

func NewSubmissionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "submission",
		Short:        "create, validate and upload benchmark submissions",
		SilenceUsage: true,
	}
	cmd.AddCommand(newSubmissionInitCmd())
	cmd.AddCommand(newSubmissionParamsCmd())
	cmd.AddCommand(newSubmissionVerifyCmd())
	cmd.AddCommand(newSubmissionZipCmd())
	cmd.AddCommand(newSubmissionUploadCmd())
	return cmd
}

func newSubmissionInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "init <benchmark> <location>",
		Short:        "create an empty submission skeleton for a benchmark",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return errors.New("exactly two arguments are required")
			}
			b, err := benchmark.Get(args[0])
			if err != nil {
				return err
			}
			if err := b.InitSubmission(args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s submission in %s\n", b.Name(), args[1])
			fmt.Fprintf(cmd.OutOrStdout(), "fill in %s before uploading\n", filepath.Join(args[1], submission.MetaFileName))
			return nil
		},
	}
}

func newSubmissionParamsCmd() *cobra.Command {
	reset := false
	cmd := &cobra.Command{
		Use:          "params <submission-dir>",
		Short:        "show or reset the run parameters of a submission",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("exactly one argument is required")
			}
			dir := args[0]
			if reset {
				b, err := benchmark.ForSubmission(dir)
				if err != nil {
					return err
				}
				if err := benchmark.ResetParamsFile(dir); err != nil {
					return err
				}
				if err := b.WriteParams(dir); err != nil {
					return err
				}
			}
			content, err := os.ReadFile(benchmark.ParamsFile(dir))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(content))
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", reset, "restore the default parameters")
	return cmd
}

func newSubmissionVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "verify <submission-dir>",
		Aliases:      []string{"validate"},
		Short:        "check a submission for missing or malformed files",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) != 1 {
				return errors.New("exactly one argument is required")
			}
			dir := args[0]
			b, err := benchmark.ForSubmission(dir)
			if err != nil {
				return err
			}
			responses, err := b.Validate(ctx, dir, benchmark.RunOptions{})
			if err != nil {
				return err
			}
			if benchmark.HasErrors(responses) {
				benchmark.ShowErrors(os.Stderr, responses)
				return fmt.Errorf("submission %s is not valid", dir)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submission %s is valid\n", dir)
			return nil
		},
	}
}

func newSubmissionZipCmd() *cobra.Command {
	skipValidation := false
	cmd := &cobra.Command{
		Use:          "zip <submission-dir> <archive>",
		Short:        "pack a submission directory into a zip archive",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) != 2 {
				return errors.New("exactly two arguments are required")
			}
			dir, archive := args[0], args[1]
			if !skipValidation {
				b, err := benchmark.ForSubmission(dir)
				if err != nil {
					return err
				}
				responses, err := b.Validate(ctx, dir, benchmark.RunOptions{})
				if err != nil {
					return err
				}
				if benchmark.HasErrors(responses) {
					benchmark.ShowErrors(os.Stderr, responses)
					return fmt.Errorf("submission %s is not valid", dir)
				}
			}
			dgst, err := submission.Zip(ctx, dir, archive)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", dgst, archive)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "pack without validating first")
	return cmd
}

func newSubmissionUploadCmd() *cobra.Command {
	quiet := false
	cmd := &cobra.Command{
		Use:          "upload <archive-or-dir>",
		Short:        "upload a submission to the challenge server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) != 1 {
				return errors.New("exactly one argument is required")
			}
			archive := args[0]

			fi, err := os.Stat(archive)
			if err != nil {
				return err
			}
			session, err := DefaultSessionManager.Get()
			if err != nil {
				return err
			}
			cli := session.Client()
			// reach the server before spending time on packing
			if err := cli.Ping(ctx); err != nil {
				return fmt.Errorf("server %s is not reachable: %w", session.URL, err)
			}
			benchmarkName := ""
			if fi.IsDir() {
				benchmarkName, err = submission.BenchmarkFromSubmission(archive)
				if err != nil {
					return err
				}
				tmpdir, err := settings.Get().MkTmpDir()
				if err != nil {
					return err
				}
				defer os.RemoveAll(tmpdir)
				packed := filepath.Join(tmpdir, "submission.zip")
				if _, err := submission.Zip(ctx, archive, packed); err != nil {
					return err
				}
				archive = packed
			} else {
				benchmarkName, err = benchmarkFromArchive(ctx, archive)
				if err != nil {
					return err
				}
			}

			receipt, err := cli.UploadSubmission(ctx, archive, benchmarkName, session.Username, quiet)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submission %s uploaded\n", receipt.ID)
			receipt, err = cli.WaitReceipt(ctx, receipt.ID, func(r types.SubmissionReceipt) {
				fmt.Fprintf(cmd.OutOrStdout(), "submission %s: %s %s\n", r.ID, r.Status, r.Message)
			})
			if err != nil {
				return err
			}
			if receipt.Status == types.StatusRejected {
				return fmt.Errorf("submission rejected: %s", receipt.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", quiet, "no progress output")
	return cmd
}

// benchmarkFromArchive unpacks just enough of the archive to read its meta
// file. The server repeats the same check on its own copy.
func benchmarkFromArchive(ctx context.Context, archive string) (string, error) {
	tmpdir, err := settings.Get().MkTmpDir()
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpdir)
	if err := submission.Unzip(ctx, archive, tmpdir); err != nil {
		return "", err
	}
	return submission.BenchmarkFromSubmission(tmpdir)
}
