// Package cli 运维命令行 tariffctl。
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	server     string
	token      string
	configPath string
	timeout    time.Duration
}

// RootCmd 返回 tariffctl 根命令。
func RootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "tariffctl",
		Short: "Operator CLI for the cargo tariff service",
		Long: `tariffctl talks to a running cargo tariff service.

Examples:
  tariffctl token --user operator-1
  tariffctl load rates.json --token $TOKEN
  tariffctl quote --date 2020-06-01 --type Glass --value 1000
  tariffctl health --grpc localhost:50051`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("TARIFFCTL_SERVER", "http://localhost:8080"), "tariff service base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("TARIFFCTL_TOKEN"), "bearer token for write operations")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "configs/tariff/config.toml", "service config file (used by token)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	cmd.AddCommand(loadCmd(opts))
	cmd.AddCommand(quoteCmd(opts))
	cmd.AddCommand(tokenCmd(opts))
	cmd.AddCommand(healthCmd(opts))

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
