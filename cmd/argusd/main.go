// Package main is ArgusDB's daemon entry point, mirroring the teacher's
// cmd/quaero/main.go startup sequence: load config, apply CLI overrides,
// build the logger, print the banner, open the engine (which performs
// crash recovery by replaying the write-ahead log), then block until an
// interrupt signal drives a graceful shutdown.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/argusdb/argus/internal/common"
	"github.com/argusdb/argus/internal/engine"
)

// configPaths is a custom flag type that allows multiple -config flags,
// later files overriding earlier ones (matches common.LoadFromFiles).
type configPaths []string

func (c *configPaths) String() string { return fmt.Sprintf("%v", *c) }
func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	port        = flag.Int("port", 0, "server port (overrides config)")
	host        = flag.String("host", "", "server host (overrides config)")
	showVersion = flag.Bool("version", false, "print version information")
)

func init() {
	flag.Var(&configFiles, "config", "configuration file path (repeatable; later files override earlier ones)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("argusd version %s (build %s)\n", common.GetVersion(), common.GetBuild())
		os.Exit(0)
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("argus.toml"); err == nil {
			configFiles = append(configFiles, "argus.toml")
		}
	}

	cfg, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger := common.NewLogger(cfg.Logging, "logs")
	common.PrintBanner(cfg, logger)

	eng, err := engine.Open(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open engine")
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing engine")
		}
	}()

	logger.Info().
		Str("instance_id", eng.InstanceID).
		Strs("collections", eng.ShowCollections()).
		Msg("argusd ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down argusd")
	common.PrintShutdownBanner(logger)
}
