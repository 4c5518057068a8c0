package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Ingenimax/llmops-agent/pkg/bootstrap"
	"github.com/Ingenimax/llmops-agent/pkg/config"
	"github.com/Ingenimax/llmops-agent/pkg/logging"
	"github.com/Ingenimax/llmops-agent/pkg/microservice"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	configPath string
	envFile    string
	agent      string
	input      string
	serve      bool
	provision  bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("agent-cli", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var opts options
	flags.StringVar(&opts.configPath, "config", "workspace.yaml", "Path to the workspace configuration")
	flags.StringVar(&opts.envFile, "env-file", "", "Optional .env file loaded before the environment is read")
	flags.StringVar(&opts.agent, "agent", "payroll", "Agent to run")
	flags.StringVar(&opts.input, "input", "", "JSON request, @file to read a file, or - for stdin")
	flags.BoolVar(&opts.serve, "serve", false, "Serve the HTTP API and gRPC health service")
	flags.BoolVar(&opts.provision, "provision", false, "Send one test event through the configured sink and exit")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.LoadOptions{Path: opts.configPath, EnvFile: opts.envFile, Flags: flags})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	logger := logging.New(
		logging.WithLevel(cfg.Logging.Level),
		logging.WithFormat(cfg.Logging.Format),
		logging.WithOutput(stderr),
	)

	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "Failed to start runtime", map[string]interface{}{"error": err.Error()})
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := rt.Close(closeCtx); err != nil {
			logger.Warn(closeCtx, "Shutdown finished with errors", map[string]interface{}{"error": err.Error()})
		}
	}()

	if opts.provision {
		event, err := rt.Provision(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return writeJSON(stdout, stderr, event)
	}

	if opts.serve {
		if err := serve(ctx, rt, logger); err != nil {
			logger.Error(ctx, "Server stopped", map[string]interface{}{"error": err.Error()})
			return 1
		}
		return 0
	}

	req, err := readRequest(opts.input, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	resp, err := rt.Run(ctx, opts.agent, req)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	return writeJSON(stdout, stderr, resp)
}

func writeJSON(stdout, stderr io.Writer, v interface{}) int {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(stderr, "Error: failed to encode response: %v\n", err)
		return 1
	}
	return 0
}

// serve runs the HTTP API and the gRPC health service until ctx is cancelled or one of them fails
func serve(ctx context.Context, rt *bootstrap.Runtime, logger logging.Logger) error {
	httpServer := microservice.NewHTTPServer(rt.Registry, rt.Config.Server.HTTPPort,
		microservice.WithEventSource(rt.Events),
		microservice.WithProject(rt.Config.ProjectName),
		microservice.WithLogger(logger),
	)
	healthServer := microservice.NewHealthServer(rt.Registry, rt.Config.Server.GRPCPort, logger)

	errCh := make(chan error, 2)
	go func() { errCh <- httpServer.Start() }()
	go func() { errCh <- healthServer.Start() }()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info(ctx, "Shutting down", nil)
	case serveErr = <-errCh:
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	healthServer.Stop()
	if err := httpServer.Stop(stopCtx); err != nil {
		serveErr = errors.Join(serveErr, err)
	}
	return serveErr
}
