package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/config"
	"github.com/biihlive/authcodes/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const appName = "authcodesctl"

var (
	cfgFile   string
	appLogger log.Logger
)

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "authcodesctl drives the one-time-code service from the command line",
	Long:          `A command-line client for password recovery and email verification codes, plus an on-demand sweep of expired codes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.WarnLevel
		if viper.GetBool("verbose") {
			level = zerolog.DebugLevel
		}
		appLogger = log.Setup(level, true)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "server config file, used by sweep (default authcodes.yaml)")
	rootCmd.PersistentFlags().String("endpoint", "http://localhost:8080", "server base URL")
	rootCmd.PersistentFlags().String("token", "", "session token for authenticated calls")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	for _, name := range []string{"endpoint", "token", "verbose"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	rootCmd.AddCommand(recoveryCmd, verificationCmd, sessionCmd, sweepCmd)
}

func initViper() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// describe renders RPC failures as "code: message".
func describe(err error) string {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return fmt.Sprintf("%s: %s", cerr.Code(), cerr.Message())
	}
	return err.Error()
}

func printYAML(w io.Writer, v interface{}) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
