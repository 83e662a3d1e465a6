// Command migrator applies or rolls back the audit log's Postgres schema
// against AUDIT_DB_DSN.
package main

import (
	"database/sql"
	"flag"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/brunomcebola/argos/internal/config"
)

func main() {
	upCmd := flag.Bool("up", false, "Run all up migrations")
	downCmd := flag.Bool("down", false, "Rollback all migrations")
	stepsCmd := flag.Int("steps", 0, "Run +/- steps")
	flag.Parse()

	cfg := config.Load()
	if cfg.AuditDBDSN == "" {
		log.Fatal("migrator: AUDIT_DB_DSN is unset")
	}

	db, err := sql.Open("postgres", cfg.AuditDBDSN)
	if err != nil {
		log.Fatalf("migrator: connect failed: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("migrator: ping failed: %v", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("migrator: driver init failed: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://db/migrations", "postgres", driver)
	if err != nil {
		log.Fatalf("migrator: init failed: %v", err)
	}

	start := time.Now()
	switch {
	case *upCmd:
		log.Println("migrator: running up migrations")
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("migrator: up failed: %v", err)
		}
	case *downCmd:
		log.Println("migrator: running down migrations")
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("migrator: down failed: %v", err)
		}
	case *stepsCmd != 0:
		log.Printf("migrator: running %d steps", *stepsCmd)
		if err := m.Steps(*stepsCmd); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("migrator: steps failed: %v", err)
		}
	default:
		version, dirty, err := m.Version()
		if err != nil {
			log.Println("migrator: no version found (empty db?)")
		} else {
			log.Printf("migrator: current version %d, dirty=%v", version, dirty)
		}
	}
	log.Printf("migrator: duration %v", time.Since(start))
}
