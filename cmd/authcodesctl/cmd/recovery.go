package cmd

import (
	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/api"
	"github.com/biihlive/authcodes/cmd/authcodesctl/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var recoveryCmd = &cobra.Command{
	Use:     "recovery",
	Short:   "Password recovery codes",
	Aliases: []string{"recover"},
}

var recoverySendCmd = &cobra.Command{
	Use:   "send EMAIL",
	Short: "Email a recovery code to the account owning EMAIL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.PasswordRecoveryServiceClient(viper.GetString("endpoint"))
		if err != nil {
			return err
		}
		resp, err := c.SendPasswordRecoveryCode(cmd.Context(), connect.NewRequest(&api.SendPasswordRecoveryCodeRequest{Email: args[0]}))
		if err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), resp.Msg)
	},
}

var recoveryVerifyCmd = &cobra.Command{
	Use:   "verify EMAIL CODE",
	Short: "Check a recovery code without spending it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.PasswordRecoveryServiceClient(viper.GetString("endpoint"))
		if err != nil {
			return err
		}
		resp, err := c.VerifyPasswordRecoveryCode(cmd.Context(), connect.NewRequest(&api.VerifyPasswordRecoveryCodeRequest{Email: args[0], Code: args[1]}))
		if err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), resp.Msg)
	},
}

var recoveryResetCmd = &cobra.Command{
	Use:   "reset EMAIL CODE",
	Short: "Set a new password with a recovery code and sign out every session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		c, err := client.PasswordRecoveryServiceClient(viper.GetString("endpoint"))
		if err != nil {
			return err
		}
		resp, err := c.ResetPasswordWithCode(cmd.Context(), connect.NewRequest(&api.ResetPasswordWithCodeRequest{
			Email:       args[0],
			Code:        args[1],
			NewPassword: password,
		}))
		if err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), resp.Msg)
	},
}

var recoveryResendCmd = &cobra.Command{
	Use:   "resend EMAIL",
	Short: "Replace the pending recovery code with a new one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.PasswordRecoveryServiceClient(viper.GetString("endpoint"))
		if err != nil {
			return err
		}
		resp, err := c.ResendPasswordRecoveryCode(cmd.Context(), connect.NewRequest(&api.ResendPasswordRecoveryCodeRequest{Email: args[0]}))
		if err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), resp.Msg)
	},
}

func init() {
	recoveryResetCmd.Flags().String("password", "", "new password (at least 6 characters)")
	_ = recoveryResetCmd.MarkFlagRequired("password")

	recoveryCmd.AddCommand(recoverySendCmd, recoveryVerifyCmd, recoveryResetCmd, recoveryResendCmd)
}
