package app

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"zerospeech.io/zrc/pkg/client"
	"zerospeech.io/zrc/pkg/settings"
)

func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "user",
		Short:        "show the logged-in user",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := DefaultSessionManager.Get()
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Username", "Server"})
			t.AppendRow(table.Row{session.Username, session.URL})
			t.Render()
			return nil
		},
	}
	cmd.AddCommand(newUserLoginCmd())
	cmd.AddCommand(newUserClearCmd())
	return cmd
}

func newUserLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [url]",
		Short: "log in to the challenge server",
		Example: `
  zrc user login
  zrc user login https://repository.example.com
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()

			url := settings.Get().RepoOrigin
			if len(args) > 0 {
				url = args[0]
			}
			reader := bufio.NewReader(os.Stdin)
			fmt.Println("please input username:")
			username, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			fmt.Println("please input token:")
			token, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			username = strings.Trim(username, "\n")
			token = strings.Trim(token, "\n")

			if err := client.NewClient(url, "").Login(ctx, token); err != nil {
				return err
			}
			err = DefaultSessionManager.Set(SessionDetails{
				Username: username,
				URL:      url,
				Token:    base64.StdEncoding.EncodeToString([]byte(token)),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s on %s\n", username, url)
			return nil
		},
	}
}

func newUserClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "clear",
		Short:        "forget the stored login session",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DefaultSessionManager.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "session cleared")
			return nil
		},
	}
}
