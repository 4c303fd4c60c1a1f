package cli

import (
	"context"
	"fmt"
	"net"

	"github.com/ashureev/writepal/internal/llm"
	"github.com/containerd/errdefs"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newGenServerCommand(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "genserver",
		Short: "Expose the configured text generator over gRPC",
		Long: `genserver lets several WritePal servers share one generator backend.
Point them at it with LLM_PROVIDER=grpc and GENERATOR_ADDR.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				a.cfg.GRPCPort = port
			}
			return runGenServer(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "override GRPC_PORT")
	return cmd
}

func runGenServer(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger
	if cfg.LLM.Provider == llm.ProviderGRPC {
		return fmt.Errorf("genserver cannot forward to another genserver: %w", errdefs.ErrInvalidArgument)
	}

	gen, closer, err := llm.New(llmSettings(cfg), logger)
	if err != nil {
		return fmt.Errorf("initialize generator: %w", err)
	}
	defer closer.Close()

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := grpc.NewServer()
	llm.NewGrpcServer(gen, logger).Register(srv)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(llm.GeneratorServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Generator server listening", "addr", lis.Addr().String(), "provider", cfg.LLM.Provider)
		errCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down generator server...")
		hs.Shutdown()
		srv.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
