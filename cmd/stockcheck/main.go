// Command stockcheck lists active parts at or below their low stock threshold
// and can restock them by their reorder quantity.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joao-fontenele/partsmarket/internal/catalog"
	"github.com/joao-fontenele/partsmarket/internal/config"
	"github.com/joao-fontenele/partsmarket/internal/inventory"
	"github.com/joao-fontenele/partsmarket/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	asJSON := flag.Bool("json", false, "print the report as JSON")
	restock := flag.Bool("restock", false, "restock every listed part by its reorder quantity")
	actor := flag.String("actor", "", "user id recorded on restock log entries")
	flag.Parse()

	cfg := config.Load("stockcheck", "")
	if err := cfg.Require("POSTGRES_URL"); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL, telemetry.DBOptions{MaxOpenConns: 2, MaxIdleConns: 2})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	parts, err := catalog.NewCatalogRepository(db).LowStock(ctx)
	if err != nil {
		logger.Error("failed to list low stock parts", "error", err)
		os.Exit(1)
	}

	if err := writeReport(os.Stdout, parts, *asJSON); err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(1)
	}

	if !*restock || len(parts) == 0 {
		return
	}

	ids := make([]string, len(parts))
	for i, p := range parts {
		ids[i] = p.ID
	}
	outcomes := inventory.NewLedger(db).BatchRestock(ctx, ids, *actor)

	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
			logger.Error("restock failed", "part_id", o.PartID, "error", o.Error)
			continue
		}
		logger.Info("restocked", "part_id", o.PartID, "added", o.Restocked, "quantity", o.NewQuantity)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func writeReport(w io.Writer, parts []catalog.LowStockPart, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if parts == nil {
			parts = []catalog.LowStockPart{}
		}
		return enc.Encode(parts)
	}

	if len(parts) == 0 {
		_, err := fmt.Fprintln(w, "All parts are above their low stock threshold.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tNAME\tSTATUS\tQTY\tTHRESHOLD\tREORDER\tTRADER")
	for _, p := range parts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			p.SKU, p.Name, p.StockStatus, p.Quantity, p.LowStockThreshold, p.ReorderQuantity, p.TraderEmail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d part(s) need restocking.\n", len(parts))
	return err
}
