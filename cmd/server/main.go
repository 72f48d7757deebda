package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "TOML config file (environment variables take precedence)")
	port := flag.String("port", "", "Server port")
	host := flag.String("host", "", "Server host")
	endpoint := flag.String("endpoint", "", "Upstream event endpoint (empty keeps events local)")
	codec := flag.String("codec", "", "Event codec: json or cbor")
	compression := flag.String("compression", "", "Event compression: none, gzip or zstd")
	sandboxes := flag.Int("sandboxes", 0, "Sandbox pool size (0 disables /v1/evaluate)")
	logLevel := flag.String("log-level", "", "Log level")
	dev := flag.Bool("dev", false, "Development mode (console logs)")
	shutdownTimeout := flag.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment and the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "host":
			cfg.Server.Host = *host
		case "endpoint":
			cfg.Transport.Endpoint = *endpoint
		case "codec":
			cfg.Report.Codec = *codec
		case "compression":
			cfg.Report.Compression = *compression
		case "sandboxes":
			cfg.Sandbox.PoolSize = *sandboxes
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "dev":
			cfg.Logging.Development = *dev
		}
	})

	srv, err := server.NewServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
		ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}
	case err := <-errChan:
		srv.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}
