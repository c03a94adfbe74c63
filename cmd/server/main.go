/*
main.go - Application entry point

PURPOSE:

	Initializes and starts the humidor valuation engine server. Handles
	configuration, dependency wiring, legacy data import, and graceful
	shutdown.

STARTUP SEQUENCE:
 1. Load configuration (.env / environment, flag overrides)
 2. Open the SQLite store and load persisted state
 3. Optionally import legacy JSON data files
 4. Configure the HTTP router
 5. Start the server with graceful shutdown

COMMAND-LINE FLAGS:

	-port               HTTP server port (overrides HUMIDOR_PORT)
	-db                 SQLite database path (overrides HUMIDOR_DB;
	                    ":memory:" for in-memory)
	-import-inventory   Path to an original-format inventory JSON file
	-import-sales       Path to an original-format sales history JSON file

GRACEFUL SHUTDOWN:

	On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
	active requests, close the database, exit.

EXAMPLES:

	./server -db=./data/humidor.db
	./server -import-inventory=cigar_inventory.json -import-sales=sales_history.json
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/humidor/valuation-engine/api"
	"github.com/humidor/valuation-engine/config"
	"github.com/humidor/valuation-engine/engine"
	"github.com/humidor/valuation-engine/store/legacy"
	"github.com/humidor/valuation-engine/store/sqlite"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger()

	// Flags override env config
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	importInventory := flag.String("import-inventory", "", "legacy inventory JSON file to import")
	importSales := flag.String("import-sales", "", "legacy sales history JSON file to import")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	svc := engine.New(cfg.DefaultTaxRate, store, log)

	if *importInventory != "" {
		if err := runImport(svc, cfg, *importInventory, *importSales); err != nil {
			log.WithError(err).Fatal("legacy import failed")
		}
		log.Info("legacy data imported")
	} else if err := svc.LoadState(context.Background()); err != nil {
		log.WithError(err).Fatal("failed to load persisted state")
	}

	handler := api.NewHandler(svc)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("server listening on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	log.Info("server stopped")
}

// runImport loads original-app JSON files into the engine and persists
// the result. The sales file is optional.
func runImport(svc *engine.Service, cfg *config.Config, inventoryPath, salesPath string) error {
	invFile, err := os.Open(inventoryPath)
	if err != nil {
		return fmt.Errorf("open inventory file: %w", err)
	}
	defer invFile.Close()

	lots, err := legacy.ImportLots(invFile, cfg.DefaultTaxRate)
	if err != nil {
		return err
	}

	if salesPath != "" {
		salesFile, err := os.Open(salesPath)
		if err != nil {
			return fmt.Errorf("open sales file: %w", err)
		}
		defer salesFile.Close()

		sales, err := legacy.ImportSales(salesFile, lots)
		if err != nil {
			return err
		}
		return svc.ImportState(context.Background(), lots, sales)
	}
	return svc.ImportState(context.Background(), lots, nil)
}
