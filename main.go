package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/powsim/nodesim/config"
	"github.com/powsim/nodesim/keys"
	"github.com/powsim/nodesim/logging"
	"github.com/powsim/nodesim/node"
	"github.com/powsim/nodesim/round"
	"github.com/powsim/nodesim/rpc"
)

// Simulator binary version.
// It should be passed during the build with '-ldflags "-X main.version="'.
var version = "unknown"

// simMain is the true entry point. This function is required since
// defers created in the top-level scope of a main method aren't executed if
// os.Exit() is called.
func simMain() error {
	var err error
	cfg := config.DefaultConfig()
	// Pre-parse the command line to check for an alternative config file.
	cfg, err = config.ParseFlags(cfg)
	if err != nil {
		return err
	}
	cfg, err = config.ReadConfigFile(cfg)
	if err != nil {
		return err
	}
	// Command line options take precedence over the config file.
	cfg, err = config.ParseFlags(cfg)
	if err != nil {
		return err
	}
	cfg, err = config.SetupConfig(cfg)
	if err != nil {
		return err
	}

	logLevel := zap.InfoLevel
	if cfg.DebugLog {
		logLevel = zap.DebugLevel
	}
	logger := logging.New(
		logLevel,
		filepath.Join(cfg.LogDir, "nodesim.log"),
		cfg.JSONLog,
		logging.FileOptions{MaxSize: cfg.MaxLogFileSize, MaxBackups: cfg.MaxLogFiles},
	)
	defer func() { _ = logger.Sync() }()
	ctx := logging.NewContext(context.Background(), logger)

	logger.Sugar().Infof("version: %s, command: %s, dir: %v", version, cfg.Command, cfg.SimDir)

	switch cfg.Command {
	case config.CommandKeygen:
		return keygen(ctx, cfg)
	default:
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		return run(ctx, cfg)
	}
}

func keygen(ctx context.Context, cfg *config.Config) error {
	generated, err := keys.Generate(cfg.Nodes)
	if err != nil {
		return err
	}
	if err := keys.Save(cfg.KeysFile, generated); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("keys generated", zap.Int("count", len(generated)), zap.String("file", cfg.KeysFile))
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.FromContext(ctx)
	logger.Info("starting nodes", zap.String("proxy", cfg.Proxy), zap.Int("nodes", cfg.Nodes))

	all, err := keys.Load(cfg.KeysFile)
	if err != nil {
		return err
	}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano())) //#nosec G404
	picked, err := keys.Sample(all, cfg.Nodes, rnd)
	if err != nil {
		return fmt.Errorf("%w, run keygen first", err)
	}
	logger.Info("keys loaded", zap.Int("available", len(all)), zap.Int("used", len(picked)))

	client, err := rpc.NewClient(
		ctx,
		cfg.Proxy,
		logger.Named("rpc"),
		rpc.WithTimeout(cfg.RPC.Timeout.Duration()),
		rpc.WithTransportRetries(cfg.RPC.TransportRetries, 100*time.Millisecond, time.Second),
	)
	if err != nil {
		return err
	}
	defer client.Close()
	workers := make([]round.Worker, 0, len(picked))
	for i, key := range picked {
		n, err := node.New(i, key, client, node.WithConfig(cfg.NodeConfig()))
		if err != nil {
			return err
		}
		logger.Debug("node created", zap.Stringer("node", n), zap.String("address", key.Address()))
		workers = append(workers, n)
	}

	store, err := round.NewLevelDBStore(cfg.DbDir)
	if err != nil {
		return err
	}
	defer store.Close()

	orchestrator, err := round.New(cfg.RoundConfig(), workers, store, round.WithRand(rnd))
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	if cfg.MetricsPort != nil {
		server := &http.Server{
			Addr:              net.JoinHostPort("", strconv.Itoa(int(*cfg.MetricsPort))),
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		eg.Go(func() error {
			logger.Sugar().Infof("metrics server listening on %s", server.Addr)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}
	eg.Go(func() error {
		return orchestrator.Run(ctx)
	})

	if err := eg.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := simMain(); err != nil {
		// If it's the flag utility error don't print it,
		// because it was already printed.
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
