// Package app assembles the zrc command tree.
package app

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"zerospeech.io/zrc/pkg/types"
	"zerospeech.io/zrc/pkg/version"

	// registers the supported benchmarks
	_ "zerospeech.io/zrc/pkg/benchmark/abxls"
	_ "zerospeech.io/zrc/pkg/benchmark/slm21"
)

func NewZrcCmd() *cobra.Command {
	insecureSkipVerify := false
	cmd := &cobra.Command{
		Use:     "zrc",
		Short:   "zrc is the ZeroSpeech challenge toolkit",
		Version: version.Get().String(),
	}
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if insecureSkipVerify {
			http.DefaultTransport.(*http.Transport).TLSClientConfig = &tls.Config{
				InsecureSkipVerify: true,
			}
		}
	}
	cmd.PersistentFlags().BoolVarP(&insecureSkipVerify, "insecure", "", insecureSkipVerify, "tls insecure skip verify")

	cmd.AddCommand(NewResourceCmd(types.KindDataset, "challenge datasets"))
	cmd.AddCommand(NewResourceCmd(types.KindCheckpoint, "pretrained model checkpoints"))
	cmd.AddCommand(NewResourceCmd(types.KindSample, "sample submissions"))
	cmd.AddCommand(NewBenchmarksCmd())
	cmd.AddCommand(NewSubmissionCmd())
	cmd.AddCommand(NewLeaderboardCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewResetIndexCmd())
	return cmd
}

func BaseContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	if os.Getenv("DEBUG") == "1" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		ctx = logr.NewContext(ctx, stdr.NewWithOptions(log.Default(), stdr.Options{LogCaller: stdr.Error}))
	}
	return ctx, cancel
}
