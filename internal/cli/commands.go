package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/pkg/config"
	"github.com/wyfcoding/cargotariff/pkg/middleware"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	keyColor  = color.New(color.FgCyan)
)

func loadCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Upload a rate table and print the reconciliation summary",
		Long: `Upload a JSON rate table keyed by date:

  {"2020-06-01": [{"cargo_type": "Glass", "rate": "0.04"}]}

The whole table is applied in one transaction; any bad entry rejects it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			env, err := newAPIClient(opts).postFile(ctx, "/api/v1/cargos/load", "upload_file", filepath.Base(args[0]), f)
			if err != nil {
				return err
			}

			var summary domain.ChangeSummary
			if err := json.Unmarshal(env.Result, &summary); err != nil {
				return fmt.Errorf("decode summary: %w", err)
			}

			out := cmd.OutOrStdout()
			okColor.Fprintln(out, env.Detail)
			printField(out, "cargo types created", summary.CreatedTypes)
			printField(out, "cargo types matched", summary.MatchedTypes)
			printField(out, "tariffs created", summary.CreatedTariffs)
			printField(out, "tariffs updated", summary.UpdatedTariffs)
			return nil
		},
	}
}

func quoteCmd(opts *globalOptions) *cobra.Command {
	var date, cargoType, value string

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Calculate the insurance premium for a declared value",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := domain.ParseDate(date); err != nil {
				return err
			}
			declared, err := decimal.NewFromString(value)
			if err != nil {
				return fmt.Errorf("invalid --value %q: %w", value, err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			env, err := newAPIClient(opts).postJSON(ctx, "/api/v1/cargos/calculate", map[string]any{
				"tariff_date":     date,
				"cargo_type_name": cargoType,
				"total_price":     declared,
			})
			if err != nil {
				return err
			}

			var premium json.Number
			if err := json.Unmarshal(env.Result, &premium); err != nil {
				return fmt.Errorf("decode premium: %w", err)
			}
			out := cmd.OutOrStdout()
			printField(out, "premium", premium.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "tariff date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&cargoType, "type", "", "cargo type name (case-sensitive)")
	cmd.Flags().StringVar(&value, "value", "", "declared value")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func tokenCmd(opts *globalOptions) *cobra.Command {
	var user, secret string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an operator",
		Long: `Sign a bearer token with the service's JWT secret.

The secret, issuer and TTL come from --config unless --secret is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			issuer := "cargotariff"
			ttl := time.Hour
			if secret == "" {
				cfg, err := config.LoadWithDefaults(opts.configPath)
				if err != nil {
					return err
				}
				secret, issuer, ttl = cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTLDuration()
			}

			token, err := middleware.SignToken(secret, issuer, user, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "operator id written into the token subject")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret, overrides --config")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printField(out io.Writer, key string, value any) {
	keyColor.Fprintf(out, "  %-20s", key)
	fmt.Fprintf(out, " %v\n", value)
}
