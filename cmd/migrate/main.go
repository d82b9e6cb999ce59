package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/web3guy0/atomichedge/core/store"
	"github.com/web3guy0/atomichedge/internal/config"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MIGRATE — standalone schema migration runner
// ═══════════════════════════════════════════════════════════════════════════════
//
// Adapted from scripts/db_setup.go's connect/ping/list-tables shape, rebuilt
// around core/store's versioned migration registry (store.Open runs every
// unapplied migration as a side effect of opening) rather than the teacher's
// script's read-only table listing against a postgres-only DSN.
//
// ═══════════════════════════════════════════════════════════════════════════════

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ config load error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("🔌 opening store at %s...\n", cfg.DatabaseDSN)
	db, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		fmt.Printf("❌ migration failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("✅ schema is up to date")
}
