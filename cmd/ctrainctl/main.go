// Command ctrainctl is the operator CLI for this pipeline: inspecting the
// Example Store, listing the adapter history, and destructive maintenance
// (dropping the adapter registry schema, deleting the store directory).
//
// Grounded on the teacher's cmd/cli/main.go: flag-driven config loading,
// a y/n confirm() prompt before destructive commands, and a
// subcommand-by-positional-arg dispatch.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"ctrain/config"
	"ctrain/logging"
	"ctrain/store"
	"ctrain/train"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./ctrain.config.json if present, else ~/.ctrain/ctrain.config.json)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: ctrainctl [flags] [command]")
		fmt.Println("Flags:")
		fmt.Println("  -config string")
		fmt.Println("        path to config file (default: ./ctrain.config.json if present, else ~/.ctrain/ctrain.config.json)")
		fmt.Println("Commands:")
		fmt.Println("  pending       Print the number of examples not yet carved into a batch")
		fmt.Println("  adapters      List every recorded adapter, oldest first")
		fmt.Println("  drop-schema   Drop the adapter registry schema")
		fmt.Println("  delete-store  Delete the example store directory")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	switch flag.Arg(0) {
	case "pending":
		handlePending(cfg)
	case "adapters":
		handleAdapters(cfg)
	case "drop-schema":
		handleDropSchema(cfg)
	case "delete-store":
		handleDeleteStore(cfg)
	default:
		log.Fatalf("unknown command: %s", flag.Arg(0))
	}
}

func confirm() bool {
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func handlePending(cfg *config.Config) {
	zlog := logging.New(false, nil)
	st, err := store.New(cfg.StorePath(), cfg.BatchSize, zlog)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to open store")
	}
	pending, err := st.Pending()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to count pending examples")
	}
	fmt.Printf("%d pending examples (%d required per batch)\n", pending, cfg.BatchSize)
}

func handleAdapters(cfg *config.Config) {
	zlog := logging.New(false, nil)
	registry, err := train.NewRegistry(context.Background(), cfg.DatabaseURL, zlog)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to open adapter registry")
	}
	defer registry.Close()

	for _, a := range registry.History() {
		fmt.Printf("%s\t%s\t%s\n", a.CreatedAt.Format("2006-01-02T15:04:05"), a.Name, a.Path)
	}
}

func handleDropSchema(cfg *config.Config) {
	fmt.Println("WARNING: this will drop the adapter registry schema and delete all adapter history")
	fmt.Print("Are you sure you want to continue? (y/n): ")
	if !confirm() {
		log.Println("operation cancelled")
		os.Exit(0)
	}

	zlog := logging.New(false, nil)
	registry, err := train.NewRegistry(context.Background(), cfg.DatabaseURL, zlog)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to open adapter registry")
	}
	defer registry.Close()

	if err := registry.DropSchema(context.Background()); err != nil {
		zlog.Fatal().Err(err).Msg("failed to drop schema")
	}
	zlog.Info().Msg("schema dropped")
}

func handleDeleteStore(cfg *config.Config) {
	fmt.Printf("WARNING: this will delete the example store directory: %s\n", cfg.StoreDir())
	fmt.Print("Are you sure you want to continue? (y/n): ")
	if !confirm() {
		fmt.Println("operation cancelled")
		os.Exit(0)
	}

	if err := os.RemoveAll(cfg.StoreDir()); err != nil {
		log.Fatalf("failed to delete store directory: %v", err)
	}
	fmt.Println("store directory deleted")
}
