package cmd

import (
	"time"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/cmd/authcodesctl/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Short:   "Inspect session tokens",
	Aliases: []string{"sessions"},
}

var sessionWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the session behind --token; fails once the session is revoked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.SessionServiceClient(viper.GetString("endpoint"), viper.GetString("token"))
		if err != nil {
			return err
		}
		resp, err := c.GetSession(cmd.Context(), connect.NewRequest(&struct{}{}))
		if err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), map[string]string{
			"user_id":    resp.Msg.UserID,
			"session_id": resp.Msg.SessionID,
			"expires_at": time.Unix(resp.Msg.ExpiresAt, 0).UTC().Format(time.RFC3339),
		})
	},
}

func init() {
	sessionCmd.AddCommand(sessionWhoamiCmd)
}
