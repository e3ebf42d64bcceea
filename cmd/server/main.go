package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/config"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the environment
	port := flag.String("port", cfg.Server.Port, "Server port")
	dataDir := flag.String("data", cfg.Database.DataDir, "Data directory for the database and backups")
	publicURL := flag.String("public-url", cfg.Server.PublicURL, "Base URL used in permalinks")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development logging")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Database.DataDir = *dataDir
	cfg.Server.PublicURL = *publicURL
	cfg.Logging.Development = *dev

	log.Printf("LivePen server %s", config.Version)

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		srv.Close()
		log.Fatalf("Server error: %v", err)
	}
}
