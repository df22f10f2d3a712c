package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	tariffgrpc "github.com/wyfcoding/cargotariff/internal/tariff/interfaces/grpc"
	"github.com/wyfcoding/cargotariff/pkg/grpcclient"
)

func healthCmd(opts *globalOptions) *cobra.Command {
	var target, service string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the gRPC health service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := grpcclient.NewClient(grpcclient.ClientConfig{Target: target})
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			status, err := grpcclient.CheckHealth(ctx, conn, service)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if status != healthpb.HealthCheckResponse_SERVING {
				warnColor.Fprintln(out, status.String())
				return fmt.Errorf("service %q is %s", service, status)
			}
			okColor.Fprintln(out, status.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "grpc", "localhost:50051", "gRPC health endpoint")
	cmd.Flags().StringVar(&service, "service", tariffgrpc.ServiceName, "service name, empty for overall status")
	return cmd
}
