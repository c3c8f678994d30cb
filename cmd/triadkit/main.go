// Command triadkit runs the three-agent orchestrator from the command line or
// as an HTTP service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scttfrdmn/triadkit-go/agents"
	"github.com/scttfrdmn/triadkit-go/config"
	"github.com/scttfrdmn/triadkit-go/httpapi"
	"github.com/scttfrdmn/triadkit-go/observability"
	"github.com/scttfrdmn/triadkit-go/routing"
	"github.com/scttfrdmn/triadkit-go/triad"
)

var version = "dev"

var (
	cfgPath string
	verbose bool

	userID      string
	personality string
	session     string
	hybrid      bool
	listenAddr  string
	model       string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "triadkit",
		Short:         "Adaptive three-agent guidance orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd(), routeCmd(), estimateCmd(), serveCmd(), &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("triadkit", version)
		},
	})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&userID, "user", "cli", "user id")
	cmd.Flags().StringVar(&personality, "type", "INFJ", "personality type tag")
	cmd.Flags().StringVar(&session, "session", string(triad.SessionCoaching), "session type")
}

func requestFrom(args []string) (*triad.OrchestrationRequest, error) {
	tag, err := triad.ParsePersonalityType(personality)
	if err != nil {
		return nil, err
	}
	return &triad.OrchestrationRequest{
		UserID:          userID,
		PersonalityType: tag,
		SessionType:     triad.SessionType(session),
		Input:           strings.Join(args, " "),
	}, nil
}

// setup loads the configuration and installs logging, tracing and metrics.
// The returned function flushes exporters.
func setup(ctx context.Context) (*config.Config, *slog.Logger, *observability.Instruments, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logger := observability.ConfigureLogging(cfg.Logging)

	if _, err := observability.InitTracing(ctx, cfg.Tracing); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if _, err := observability.InitMetrics(ctx, cfg.Tracing.ServiceName); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	instruments, err := observability.NewInstruments(observability.Meter())
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(ctx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
		if err := observability.ShutdownMetrics(ctx); err != nil {
			logger.Warn("metrics shutdown failed", "error", err)
		}
	}
	return cfg, logger, instruments, shutdown, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [input]",
		Short: "Orchestrate one request and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, instruments, shutdown, err := setup(ctx)
			if err != nil {
				return err
			}
			defer shutdown()

			sys, err := config.Build(ctx, cfg, logger, instruments)
			if err != nil {
				return err
			}
			defer func() { _ = sys.Close() }()

			req, err := requestFrom(args)
			if err != nil {
				return err
			}
			var result *triad.OrchestrationResult
			if hybrid {
				result = sys.Orchestrator.OrchestrateHybrid(ctx, req)
			} else {
				result = sys.Orchestrator.Orchestrate(ctx, req)
			}
			return printJSON(result)
		},
	}
	addRequestFlags(cmd)
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "race the online and offline paths")
	return cmd
}

func routeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route [input]",
		Short: "Answer a simple query with the single best-suited agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, instruments, shutdown, err := setup(ctx)
			if err != nil {
				return err
			}
			defer shutdown()

			sys, err := config.Build(ctx, cfg, logger, instruments)
			if err != nil {
				return err
			}
			defer func() { _ = sys.Close() }()

			req, err := requestFrom(args)
			if err != nil {
				return err
			}
			router := routing.NewRouter(agents.NewInvoker(sys.Backend, cfg.Agents,
				agents.WithLogger(logger), agents.WithInstruments(instruments)), nil)
			resp, err := router.RouteSimpleQuery(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	addRequestFlags(cmd)
	return cmd
}

func estimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate [input]",
		Short: "Compare the cost of single-agent and full orchestration",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.Join(args, " ")
			if model == "" {
				cfg, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				model = cfg.LLM.Model
			}
			est := routing.EstimateCost(input, model)
			fmt.Printf("Model:              %s\n", est.Model)
			fmt.Printf("Complexity:         %s\n", routing.Complexity(input))
			fmt.Printf("Tokens (in/out):    %d / %d\n", est.InputTokens, est.OutputTokens)
			fmt.Printf("Single agent:       $%.6f\n", est.SingleAgent)
			fmt.Printf("Full orchestration: $%.6f\n", est.FullOrchestration)
			fmt.Printf("Recommended:        %s\n", est.Recommended)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model to price (default: configured model)")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, instruments, shutdown, err := setup(ctx)
			if err != nil {
				return err
			}
			defer shutdown()

			sys, err := config.Build(ctx, cfg, logger, instruments)
			if err != nil {
				return err
			}
			defer func() { _ = sys.Close() }()

			opts := []httpapi.Option{
				httpapi.WithLogger(logger),
				httpapi.WithModel(cfg.LLM.Model),
				httpapi.WithRouter(routing.NewRouter(agents.NewInvoker(sys.Backend, cfg.Agents,
					agents.WithLogger(logger), agents.WithInstruments(instruments)), nil)),
			}
			if sys.Health != nil {
				opts = append(opts, httpapi.WithHealth(sys.Health))
			}

			addr := listenAddr
			if addr == "" {
				addr = cfg.ListenAddr
			}
			if addr == "" {
				addr = ":8080"
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           httpapi.NewServer(sys.Orchestrator, opts...).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("triadkit listening", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (default: listen_addr or :8080)")
	return cmd
}
