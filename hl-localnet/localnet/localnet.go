package localnet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-devstack/sysgo"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-localnet/metrics"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/ioutil"
	hllog "github.com/hyperlane-xyz/hyperlane-localnet/hl-service/log"
)

var ErrRunFailed = errors.New("localnet run failed")

// Main is the entrypoint into the localnet run.
func Main(version string) cli.ActionFunc {
	return func(cliCtx *cli.Context) error {
		cfg := NewConfig(cliCtx)
		if err := cfg.Check(); err != nil {
			return fmt.Errorf("invalid CLI flags: %w", err)
		}
		logger := hllog.NewLogger(os.Stdout, cfg.LogConfig)
		hllog.SetGlobalLogHandler(logger.Handler())
		return Run(cliCtx.Context, logger, cfg, version, cliCtx.App.Writer)
	}
}

// Run executes one localnet run and prints its summary to out.
func Run(ctx context.Context, logger log.Logger, cfg *CLIConfig, version string, out io.Writer) error {
	sysCfg, err := cfg.SysConfig()
	if err != nil {
		return fmt.Errorf("invalid run config: %w", err)
	}

	m := metrics.NoopMetrics
	if cfg.MetricsConfig.Enabled {
		registry := metrics.NewMetrics()
		srv, err := metrics.StartServer(logger, registry.Registry(), cfg.MetricsConfig.ListenAddr, cfg.MetricsConfig.ListenPort)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				logger.Warn("Failed to stop metrics server", "err", err)
			}
		}()
		m = registry
	}
	m.RecordInfo(version)
	m.RecordUp()

	progressor := ioutil.LogProgressor(logger, "Downloading", time.Second)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		progressor = ioutil.BarProgressor()
	}
	o := &sysgo.Orchestrator{
		Log:        logger,
		Config:     sysCfg,
		Metrics:    m,
		Progressor: progressor,
	}
	res, runErr := o.Run(ctx)
	PrintSummary(out, res, runErr)
	if runErr != nil {
		return fmt.Errorf("%w: %w", ErrRunFailed, runErr)
	}
	if res.Status != sysgo.StatusSucceeded {
		return fmt.Errorf("%w: status %s", ErrRunFailed, res.Status)
	}
	return nil
}
