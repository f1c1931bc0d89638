package cmd

import (
	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/api"
	"github.com/biihlive/authcodes/cmd/authcodesctl/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var verificationCmd = &cobra.Command{
	Use:     "verification",
	Short:   "Email verification codes",
	Aliases: []string{"verify-email"},
}

var verificationSendCmd = &cobra.Command{
	Use:   "send USER_ID EMAIL",
	Short: "Email a verification code for a newly registered account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.EmailVerificationServiceClient(viper.GetString("endpoint"))
		if err != nil {
			return err
		}
		resp, err := c.SendEmailVerificationCode(cmd.Context(), connect.NewRequest(&api.SendEmailVerificationCodeRequest{UserID: args[0], Email: args[1]}))
		if err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), resp.Msg)
	},
}

var verificationVerifyCmd = &cobra.Command{
	Use:   "verify USER_ID CODE",
	Short: "Confirm the account's email address with its code",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.EmailVerificationServiceClient(viper.GetString("endpoint"))
		if err != nil {
			return err
		}
		resp, err := c.VerifyEmailCode(cmd.Context(), connect.NewRequest(&api.VerifyEmailCodeRequest{UserID: args[0], Code: args[1]}))
		if err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), resp.Msg)
	},
}

var verificationResendCmd = &cobra.Command{
	Use:   "resend USER_ID EMAIL",
	Short: "Replace the pending verification code with a new one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.EmailVerificationServiceClient(viper.GetString("endpoint"))
		if err != nil {
			return err
		}
		resp, err := c.ResendEmailVerificationCode(cmd.Context(), connect.NewRequest(&api.ResendEmailVerificationCodeRequest{UserID: args[0], Email: args[1]}))
		if err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), resp.Msg)
	},
}

func init() {
	verificationCmd.AddCommand(verificationSendCmd, verificationVerifyCmd, verificationResendCmd)
}
