// Command migrate applies or rolls back the admin-account schema
// (migrations/postgres) against the database named by config.DatabaseConfig.
// It is only needed when the dashboard's Postgres-backed adminstore is in
// use; a deployment with the dashboard disabled never runs it.
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/aras-services/gsa-adaptor/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|force <version>|version> [-Dkey=value ...]")
	}
	command := os.Args[1]
	rest := os.Args[2:]

	cfg, err := config.Load(rest)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", cfg.Database.Name, err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("failed to initialize postgres driver: %v", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://migrations/postgres", "postgres", driver)
	if err != nil {
		log.Fatalf("failed to load migrations: %v", err)
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate up: %v", err)
		}
		fmt.Println("admin_accounts schema is up to date")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate down: %v", err)
		}
		fmt.Println("admin_accounts schema rolled back")
	case "force":
		if len(rest) == 0 {
			log.Fatal("usage: migrate force <version>")
		}
		v, err := strconv.Atoi(rest[0])
		if err != nil {
			log.Fatalf("invalid version %q: %v", rest[0], err)
		}
		if err := m.Force(v); err != nil {
			log.Fatalf("migrate force: %v", err)
		}
		fmt.Printf("forced schema version to %d\n", v)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("migrate version: %v", err)
		}
		fmt.Printf("version %d, dirty=%v\n", version, dirty)
	default:
		log.Fatalf("unknown command %q; use up, down, force, or version", command)
	}
}
