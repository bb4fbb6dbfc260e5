package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
)

// DaemonConfig is read from the environment when the daemon starts.
type DaemonConfig struct {
	DataDir       string        `env:"FARM_DATADIR"`
	ConfigFile    string        `env:"FARM_CONFIG"`
	MetricsAddr   string        `env:"FARM_METRICS_ADDR"   envDefault:":9100"`
	BlockInterval time.Duration `env:"FARM_BLOCK_INTERVAL" envDefault:"5s"`
	StoreTimeout  time.Duration `env:"FARM_STORE_TIMEOUT"  envDefault:"2s"`
}

func LoadDaemonConfig() (DaemonConfig, error) {
	var cfg DaemonConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BlockInterval <= 0 {
		return cfg, fmt.Errorf("FARM_BLOCK_INTERVAL must be positive, got %v", cfg.BlockInterval)
	}
	if cfg.DataDir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return cfg, err
		}
		cfg.DataDir = dir
	}
	if cfg.ConfigFile == "" {
		cfg.ConfigFile = filepath.Join(cfg.DataDir, deploymentFileName)
	}
	return cfg, nil
}

// Daemon produces blocks on a fixed interval so farm rewards keep accruing, and publishes the state of the
// farm's pools as prometheus gauges after each block.
type Daemon struct {
	logger *slog.Logger
	cfg    DaemonConfig

	// embed mutex for locking state for members below the mutex
	sync.RWMutex
	height uint64
}

func newDaemon(logger *slog.Logger, cfg DaemonConfig) *Daemon {
	return &Daemon{
		logger: logger,
		cfg:    cfg,
	}
}

func (d *Daemon) start(ctx context.Context, wg *sync.WaitGroup) {
	misc.Infof(d.logger, "Starting farm daemon, block interval:%v", d.cfg.BlockInterval)

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.BlockProducer(ctx)
	}()

	if d.cfg.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.serveMetrics(ctx)
		}()
	}
}

// BlockProducer mines a block every interval until ctx is cancelled.
func (d *Daemon) BlockProducer(ctx context.Context) {
	defer d.logger.Info("Exiting BlockProducer")
	d.logger.Info("Starting BlockProducer")

	ticker := time.NewTicker(d.cfg.BlockInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.produceBlock(ctx); err != nil {
				// try again next tick
				misc.Warnf(d.logger, "block production failed: %v", err)
			}
		}
	}
}

// Height is the height reached by the last block the daemon produced.
func (d *Daemon) Height() uint64 {
	d.RLock()
	defer d.RUnlock()
	return d.height
}

// produceBlock loads the chain, mines one block, refreshes the pool gauges and saves the chain. The store is
// only held for the duration so cli commands can get at it between blocks.
func (d *Daemon) produceBlock(ctx context.Context) error {
	store, err := openStore(ctx, d.logger, filepath.Join(d.cfg.DataDir, chainDBName), d.cfg.StoreTimeout)
	if err != nil {
		return err
	}
	defer store.Close()

	c, err := loadChain(d.logger, store)
	if err != nil {
		return err
	}
	height := c.Mine(1)
	if err = d.refreshPoolMetrics(ctx, c); err != nil {
		misc.Warnf(d.logger, "pool metrics not refreshed: %v", err)
	}
	if err = store.Save(c); err != nil {
		return fmt.Errorf("saving chain: %w", err)
	}

	d.Lock()
	d.height = height
	d.Unlock()
	misc.Debugf(d.logger, "produced block %d", height)
	return nil
}

func (d *Daemon) refreshPoolMetrics(ctx context.Context, c *chain.Chain) error {
	info, err := LoadDeploymentInfo(d.cfg.ConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		// nothing deployed yet
		return nil
	}
	if err != nil {
		return err
	}
	stats, err := collectPoolStats(ctx, c.Session(types.Address{}), info.FarmRouter())
	if err != nil {
		return err
	}
	publishPoolStats(stats)
	return nil
}

func (d *Daemon) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              d.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	misc.Infof(d.logger, "serving metrics on %s", d.cfg.MetricsAddr)

	select {
	case err := <-errc:
		misc.Errorf(d.logger, "metrics server failed: %v", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			misc.Warnf(d.logger, "metrics server shutdown: %v", err)
		}
		<-errc
	}
}
