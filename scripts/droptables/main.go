// Drops every table for the current environment prefix. Emergency tooling;
// the seed command's --drop-tables flag is the usual path.
package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"corai/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.SupabaseDBURL == "" {
		log.Fatal("SUPABASE_DB_URL environment variable is required")
	}

	// Same prefix rules as the server, so the script always targets the
	// tables the server actually uses.
	prefix := cfg.TablePrefix

	db, err := sql.Open("pgx", cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }() // Error ignored: script exiting

	// Drop all tables with environment-specific prefix
	dropSQL := fmt.Sprintf(`
		DROP TABLE IF EXISTS %smessages CASCADE;
		DROP TABLE IF EXISTS %sbranches CASCADE;
		DROP TABLE IF EXISTS %schats CASCADE;
	`, prefix, prefix, prefix)

	if _, err := db.Exec(dropSQL); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}

	fmt.Printf("All tables dropped successfully (prefix: %s)\n", prefix)
}
