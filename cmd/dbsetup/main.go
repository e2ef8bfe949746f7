package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"airsupport/internal/api"
	"airsupport/internal/config"
	"airsupport/internal/database"
	"airsupport/internal/logging"
	"airsupport/internal/service"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

// run refreshes the working database once and reports the applied shift.
func run() error {
	configPath := flag.String("config", "", "path to config.yaml (defaults to $CONFIG_PATH or configs/config.yaml)")
	export := flag.Bool("export", false, "also write the reservation tables to exports.path as reservations.xlsx")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, config.ErrMissingCredentials) {
			fmt.Fprint(os.Stderr, config.CredentialsHelp())
		}
		return fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := database.NewBootstrapper(cfg.Data, logging.Component(baseLogger, "bootstrap")).Prepare(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("working copy: %s\n", result.WorkingPath)
	if result.Shift.Applied {
		fmt.Printf("dates shifted by %s (reference %s)\n", result.Shift.Offset, result.Shift.Reference.Format("2006-01-02 15:04:05Z07:00"))
	} else {
		fmt.Println("no valid reference timestamp; dates left unchanged")
	}

	if !*export {
		return nil
	}
	exportPath, err := exportReservations(ctx, cfg, result.WorkingPath, baseLogger)
	if err != nil {
		return err
	}
	fmt.Printf("reservations exported to %s\n", exportPath)
	return nil
}

func exportReservations(ctx context.Context, cfg *config.Config, dbPath string, logger *zerolog.Logger) (string, error) {
	db, err := database.NewDB(dbPath, logger)
	if err != nil {
		return "", err
	}
	defer db.Close()

	tables, err := service.NewReservationService(db, nil, logging.Component(logger, "service")).Export(ctx)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(cfg.Exports.Path, "reservations.xlsx")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := api.WriteWorkbook(f, tables); err != nil {
		return "", fmt.Errorf("write workbook: %w", err)
	}
	return path, nil
}
