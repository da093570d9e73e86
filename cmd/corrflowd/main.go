// Command corrflowd runs the correspondence approval daemon using the
// default configuration search path ($CORRFLOW_CONFIG, then
// ~/.config/corrflow/config.toml).
package main

import (
	"context"
	"flag"
	"log"

	"corrflow/internal/config"
	"corrflow/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("corrflowd: %v", err)
	}
}
