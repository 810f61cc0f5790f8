package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sterwen-nav/nmea-router/config"
	"github.com/sterwen-nav/nmea-router/server"

	// Blank imports run each package's init(), which registers its component classes into
	// config.Default() — the explicit registry DESIGN NOTES §9 calls for instead of reflection.
	_ "github.com/sterwen-nav/nmea-router/controller"
	_ "github.com/sterwen-nav/nmea-router/routing"
)

func main() {
	settingsFile := flag.String("conf", "navrouter.yml", "path to the YAML settings file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*settingsFile)
	if err != nil {
		log.Fatalf("navrouter: %v", err)
	}

	os.Exit(server.Run(ctx, cfg, nil))
}
