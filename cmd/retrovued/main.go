// Command retrovued runs the RetroVue broadcast daemon: it maintains the
// playlog and guide horizons for every active channel, manages channel
// producers, and serves the CLI control socket.
package main

import (
	"context"
	"flag"
	"log"

	"retrovue/internal/config"
	"retrovue/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("retrovued: %v", err)
	}
}
