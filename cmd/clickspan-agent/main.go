package main

import (
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/clickspan/agent/internal/database"
	"github.com/clickspan/agent/internal/display"
	"github.com/clickspan/agent/internal/server"
	"github.com/clickspan/agent/internal/tracker"
)

func main() {
	// app data dir: platform-specific
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		log.Fatal("Failed to get user home directory:", err)
	}

	var applicationDirectory string
	switch runtime.GOOS {
	case "darwin":
		applicationDirectory = filepath.Join(homeDirectory, "Library", "Application Support", "Clickspan")
	case "windows":
		applicationDirectory = filepath.Join(homeDirectory, "AppData", "Roaming", "Clickspan")
	default: // linux and others
		applicationDirectory = filepath.Join(homeDirectory, ".local", "share", "Clickspan")
	}
	if err := os.MkdirAll(applicationDirectory, 0o755); err != nil {
		log.Fatal("Failed to create application directory:", err)
	}
	databasePath := filepath.Join(applicationDirectory, "state.db")

	// State store is best-effort: a broken database degrades to in-memory
	// tracking rather than refusing to start.
	var store tracker.Store
	db, err := database.NewDatabase(databasePath)
	if err != nil {
		log.Printf("Warning: state store unavailable: %v", err)
	} else {
		defer db.Close()
		store = db
	}

	indicator := display.NewManager(display.DefaultTTL)
	trk := tracker.New(tracker.Options{
		Store:   store,
		Display: indicator,
	})
	trk.StartContext()

	// Get server address from environment or use default
	serverAddress := os.Getenv("CLICKSPAN_ADDRESS")
	if serverAddress == "" {
		serverAddress = "127.0.0.1:8123"
	}

	srv := server.NewServer(trk, indicator, serverAddress)
	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
}
