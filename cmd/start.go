package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"firestige.xyz/shipswitch/internal/backend"
	"firestige.xyz/shipswitch/internal/backend/afpacket"
	"firestige.xyz/shipswitch/internal/capture"
	"firestige.xyz/shipswitch/internal/config"
	"firestige.xyz/shipswitch/internal/core"
	"firestige.xyz/shipswitch/internal/dispatcher"
	"firestige.xyz/shipswitch/internal/engine"
	"firestige.xyz/shipswitch/internal/fdb"
	"firestige.xyz/shipswitch/internal/log"
	"firestige.xyz/shipswitch/internal/metrics"
	"firestige.xyz/shipswitch/internal/policy"
)

var shutdownTimeout time.Duration

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the switch",
	Long: `
Run the switch in the foreground until SIGINT or SIGTERM.

Examples:
  shipswitch start                              # default config, shutdown timeout 5s
  shipswitch start -c config.yml                # explicit config
  shipswitch start -c config.yml -t 1m          # shutdown timeout 1m
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := runStart(ctx, configFile, shutdownTimeout); err != nil {
			exitWithError("shipswitch failed", err)
		}
	},
}

func init() {
	startCmd.Flags().DurationVarP(&shutdownTimeout, "timeout", "t", 5*time.Second, "shutdown timeout")
}

// runStart wires config, policy, metrics and the backend together and runs
// the dispatcher until ctx ends.
func runStart(ctx context.Context, cfgPath string, timeout time.Duration) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	// Nothing feeds the memory backend's rx queues outside replay.
	if cfg.Backend.Type != config.BackendAFPacket {
		return fmt.Errorf("%w: start needs backend.type %s, got %q; use replay for %s", core.ErrConfigInvalid, config.BackendAFPacket, cfg.Backend.Type, config.BackendMemory)
	}
	if err := log.Init(cfg.Log); err != nil {
		return err
	}
	logger := log.GetLogger()

	tbl, err := policy.LoadTable(cfg.PolicyFile)
	if err != nil {
		return err
	}
	for _, w := range tbl.Lint() {
		logger.Warn(w)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewSwitchMetrics(reg)

	var srv *metrics.Server
	if cfg.Metrics.Enabled {
		srv = metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, reg)
		if err := srv.Start(ctx); err != nil {
			return err
		}
	}

	b, err := openBackend(cfg, tbl)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.WithError(err).Error("close backend")
		}
	}()

	d, err := dispatcher.New(b, engine.New(tbl, fdb.New(), m), tbl, m, cfg.Backend.PollTimeoutDuration)
	if err != nil {
		return err
	}

	logger.Infof("shipswitch started with %d nodes on %s backend", tbl.Len(), cfg.Backend.Type)
	_ = d.Run(ctx)

	if srv != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Stop(stopCtx); err != nil {
			logger.WithError(err).Warn("stop metrics server")
		}
	}
	logger.Info("shipswitch stopped")
	return nil
}

// openBackend opens one AF_PACKET socket per node interface, wrapped in a
// capture tap when capture is enabled.
func openBackend(cfg *config.GlobalConfig, tbl *policy.Table) (backend.Backend, error) {
	ifaces := make([]string, 0, tbl.Len())
	for _, n := range tbl.Nodes() {
		if n.Iface == "" {
			return nil, fmt.Errorf("%w: node %q has no iface for the afpacket backend", core.ErrConfigInvalid, n.Name)
		}
		ifaces = append(ifaces, n.Iface)
	}
	ab, err := afpacket.New(afpacket.Options{
		Ifaces:       ifaces,
		FrameSize:    cfg.Backend.FrameSize,
		NumFrames:    cfg.Backend.NumFrames,
		SnapLen:      cfg.Backend.SnapLen,
		BufferSizeMB: cfg.Backend.BufferSizeMB,
	})
	if err != nil {
		return nil, err
	}

	var b backend.Backend = ab
	if !cfg.Capture.Enabled {
		return b, nil
	}
	tap, err := capture.NewTap(b, cfg.Capture.Path, cfg.Capture.SnapLen)
	if err != nil {
		b.Close()
		return nil, err
	}
	log.GetLogger().Infof("recording transmitted frames to %s", cfg.Capture.Path)
	return tap, nil
}
