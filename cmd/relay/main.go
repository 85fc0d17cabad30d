package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cryptex/internal/audit"
	"cryptex/internal/log"
	"cryptex/internal/relay"
)

func main() {
	cfgFile := flag.String("f", "", "relay config file (TOML)")
	addr := flag.String("a", "", "listen address override (host:port)")
	flag.Parse()

	cfg := &relay.Config{}
	if *cfgFile != "" {
		var err error
		cfg, err = relay.LoadFile(*cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "relay: config: %v\n", err)
			os.Exit(1)
		}
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "relay: config: %v\n", err)
		os.Exit(1)
	}

	backend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay: logging: %v\n", err)
		os.Exit(1)
	}
	auditBackend, err := log.New(cfg.Audit.File, "INFO", false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay: audit log: %v\n", err)
		os.Exit(1)
	}

	srv := relay.New(cfg, backend, audit.New(auditBackend))
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	srv.Halt()
	auditBackend.Close()
	backend.Close()
}
