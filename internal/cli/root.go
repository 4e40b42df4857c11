package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thruflo/gamecheck/internal/config"
	"github.com/thruflo/gamecheck/internal/dashboard"
	"github.com/thruflo/gamecheck/internal/logging"
	"github.com/thruflo/gamecheck/internal/metrics"
	"github.com/thruflo/gamecheck/internal/store"
	"github.com/thruflo/gamecheck/internal/stream"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Persistent flags.
var (
	configPath  string
	serverURL   string
	logLevel    string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "gamecheck",
	Short: "Follow and drive game launch tests from the terminal",
	Long: `gamecheck talks to a game launch-test backend. It shows the current
results, follows live updates as tests run, imports catalogue spreadsheets and
submits their games one at a time, and retries or resets tests.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("gamecheck version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default: .gamecheck/config.yaml if present)")
	pf.StringVar(&serverURL, "server", "", "backend API base URL (overrides config and "+config.EnvServerURL+")")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig resolves configuration from file, environment and flags, in
// increasing precedence.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfigFile(configPath, false)
	} else {
		var cwd string
		cwd, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		cfg, err = config.LoadConfig(cwd)
	}
	if err != nil {
		return nil, err
	}

	config.ApplyEnv(cfg, os.Getenv)
	if serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// env is what every command works with.
type env struct {
	cfg     *config.Config
	client  *stream.Client
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// setup loads config, applies the log level, builds the API client and
// starts the metrics endpoint if configured. The endpoint stops when ctx is
// done.
func setup(ctx context.Context, opts ...stream.ClientOption) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(level)

	e := &env{
		cfg:    cfg,
		logger: logging.Component("cli"),
	}
	if cfg.Metrics.Addr != "" {
		e.metrics = metrics.New()
		if _, err := serveMetrics(ctx, cfg.Metrics.Addr, e.metrics, e.logger); err != nil {
			return nil, err
		}
	}

	clientOpts := []stream.ClientOption{
		stream.WithRequestTimeout(cfg.Server.Timeout),
		stream.WithReconnectInterval(cfg.Stream.ReconnectInterval),
		stream.WithMaxReconnectAttempts(cfg.Stream.MaxReconnectAttempts),
		stream.WithMetrics(e.metrics),
	}
	e.client = stream.NewClient(cfg.Server.BaseURL, append(clientOpts, opts...)...)
	return e, nil
}

// controller builds a dashboard controller over the env's client.
func (e *env) controller(r dashboard.Renderer) (*dashboard.Controller, error) {
	policy, err := store.ParsePolicy(e.cfg.Merge.Policy)
	if err != nil {
		return nil, err
	}
	return dashboard.New(e.client, dashboard.Options{
		Policy:        policy,
		DispatchDelay: e.cfg.Dispatch.Delay,
		Priority:      e.cfg.Dispatch.Priority,
		RefreshDelay:  e.cfg.Stream.RefreshDelay,
		Renderer:      r,
		Metrics:       e.metrics,
	})
}

// serveMetrics listens on addr and serves /metrics until ctx is done. It
// returns the bound address.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, logger *logging.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", ln.Addr().String())
	return ln.Addr(), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
