package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/packstore/packstore/pkg/config"
	"github.com/packstore/packstore/pkg/server"
)

func main() {
	// Command line flags
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		port       = flag.Int("port", 0, "Server port (overrides config)")
		dataFile   = flag.String("data-file", "", "Data file path for persistence (overrides config)")
		dataDir    = flag.String("data-dir", "", "Data directory for storage (overrides config)")
		natsURL    = flag.String("nats-url", "", "NATS URL for the relay channel (overrides config)")
		noSave     = flag.Bool("no-background-save", false, "Disable the periodic save worker")
		showHelp   = flag.Bool("help", false, "Show help message")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\npackstore is a key-indexed entry store over a document database.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                  # Start with defaults\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config packstore.yaml           # Load YAML config\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -port 9090 -data-dir /tmp/packs  # Custom port and data directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -nats-url nats://localhost:4222  # Enable the relay channel\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSafety Note:\n")
		fmt.Fprintf(os.Stderr, "  With -no-background-save, data is only saved on graceful shutdown.\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	// Flag overrides
	if *port > 0 {
		cfg.Port = *port
	}
	if *dataFile != "" {
		cfg.DataFile = *dataFile
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *natsURL != "" {
		cfg.NATSURL = *natsURL
	}
	if *noSave {
		cfg.BackgroundSave = false
		log.Printf("WARN: Background save disabled - data only saved on graceful shutdown")
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Could not build server: %v", err)
	}
	defer srv.Shutdown()

	log.Printf("INFO: Loading data from: %s", cfg.DataFile)
	srv.InitDB()

	// Create HTTP server
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Router(),
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting packstore server on :%d", cfg.Port)
		log.Printf("API endpoints available at http://localhost:%d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Save database before shutdown
	log.Printf("INFO: Saving data to: %s", cfg.DataFile)
	srv.SaveDB()

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
