package helpers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/stackprof/internal/config"
	errs "github.com/coral-mesh/stackprof/internal/errors"
	"github.com/coral-mesh/stackprof/internal/logging"
	"github.com/coral-mesh/stackprof/internal/profiler"
	"github.com/coral-mesh/stackprof/internal/report"
	"github.com/coral-mesh/stackprof/internal/safe"
	"github.com/coral-mesh/stackprof/internal/stacks"
)

// Env is what every command needs: the loaded configuration and a logger.
type Env struct {
	Config     *config.Config
	ConfigPath string
	Logger     zerolog.Logger
}

// LoadEnv loads the configuration named by --config (or found on the
// default search path), applies the persistent logging flags and builds the
// logger. apply runs before validation so command flags take part in it.
func LoadEnv(cmd *cobra.Command, apply ...func(*config.Config)) (*Env, error) {
	flags := cmd.Flags()
	explicit, _ := flags.GetString("config")

	loader := config.NewLoader()
	path, required := loader.Resolve(explicit)
	cfg, err := config.NewLayeredLoader().Load(path, required)
	if err != nil {
		return nil, err
	}

	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format, _ = flags.GetString("log-format")
	}
	for _, fn := range apply {
		fn(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logCfg := cfg.Logging.Logger()
	logCfg.Output = cmd.ErrOrStderr()
	logger := logging.NewWithComponent(logCfg, cmd.Name())
	if path != "" {
		logger.Debug().Str("path", path).Msg("Loaded configuration")
	}

	return &Env{Config: cfg, ConfigPath: path, Logger: logger}, nil
}

// NewProfiler builds the stack profiler configured by env over source. When
// a metrics address is configured, the returned stop function shuts the
// metrics endpoint down; it is always safe to call.
func (e *Env) NewProfiler(source profiler.ThreadSource) (*profiler.Profiler, func(), error) {
	var opts []profiler.Option
	stop := func() {}

	if addr := e.Config.Profiler.MetricsAddr; addr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, profiler.WithMetrics(profiler.NewMetrics(reg)))

		_, shutdown, err := ServeMetrics(addr, reg, e.Logger)
		if err != nil {
			return nil, stop, err
		}
		stop = shutdown
	}

	p, err := profiler.New(e.Config.Profiler.Sampler(), source, e.Logger, opts...)
	if err != nil {
		stop()
		return nil, func() {}, err
	}
	return p, stop, nil
}

// ServeMetrics exposes reg on addr under /metrics until the returned
// function is called. It returns the address actually bound.
func ServeMetrics(addr string, reg *prometheus.Registry, logger zerolog.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("Serving sampler metrics")

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-done
	}, nil
}

// WriteReport renders table to w in the configured format, and to the
// pprof file when one is configured.
func (e *Env) WriteReport(w io.Writer, table *stacks.Table) error {
	format, err := report.ParseFormat(e.Config.Report.Format)
	if err != nil {
		return err
	}
	if err := report.Render(w, format, table, report.Options{TopStacks: e.Config.Profiler.Top}); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if path := e.Config.Report.Pprof; path != "" {
		if err := WritePprofFile(path, table, e.Config.Profiler.Period); err != nil {
			return err
		}
		e.Logger.Info().Str("path", path).Msg("Wrote pprof profile")
	}
	return nil
}

// WritePprofFile writes table to path in pprof format.
func WritePprofFile(path string, table *stacks.Table, period time.Duration) (err error) {
	// #nosec G304 -- path is the user's --pprof argument.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer errs.CloseInto(&err, f, path)

	if err := report.WritePprof(f, table, period); err != nil {
		return fmt.Errorf("failed to write pprof profile: %w", err)
	}
	return nil
}

// maxProfileSize bounds pprof files read back by report --input.
const maxProfileSize = 256 << 20

// ReadPprofFile loads a table from a pprof file.
func ReadPprofFile(path string) (*stacks.Table, error) {
	f, err := safe.Open(path, &safe.Options{MaxSize: maxProfileSize})
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	table, err := report.ReadPprof(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read pprof profile %s: %w", path, err)
	}
	return table, nil
}
