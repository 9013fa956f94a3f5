// Package main imports pre-funded trading accounts into the wallet pool.
// The pool is provisioned out-of-band: the engine only assigns accounts, it
// never creates them. Re-running an import is safe; existing addresses are
// skipped.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
	"agent-funding-engine/internal/storage/migrations"
	pgstore "agent-funding-engine/internal/storage/postgres"
)

// accountFile is the wire shape of an import file.
type accountFile struct {
	Accounts []accountEntry `yaml:"accounts"`
}

type accountEntry struct {
	Address    string `yaml:"address"`
	Credential string `yaml:"credential"`
}

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	file := flag.String("file", "", "YAML file with accounts to import")
	flag.Parse()

	logger := log.New(os.Stdout, "[import-pool] ", log.LstdFlags|log.Lshortfile)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	if *file == "" {
		logger.Fatal("--file is required")
	}

	entries, err := readAccountFile(*file)
	if err != nil {
		logger.Fatalf("Failed to read account file: %v", err)
	}
	if len(entries) == 0 {
		logger.Fatal("Account file contains no accounts")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	store := pgstore.NewPoolAccountStore(pool)

	imported := 0
	skipped := 0
	for _, entry := range entries {
		acct := &domain.PoolAccount{
			Address:    entry.Address,
			Credential: entry.Credential,
			ImportedAt: time.Now().UnixMilli(),
		}
		err := store.Insert(ctx, acct)
		switch {
		case err == nil:
			imported++
		case isDuplicate(err):
			skipped++
		default:
			logger.Fatalf("Failed to import account %s: %v", entry.Address, err)
		}
	}

	logger.Printf("Import complete: %d imported, %d already present", imported, skipped)
}

// readAccountFile parses and validates the import file.
func readAccountFile(path string) ([]accountEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f accountFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	for i, entry := range f.Accounts {
		if entry.Address == "" {
			return nil, fmt.Errorf("account %d: address is required", i)
		}
		if entry.Credential == "" {
			return nil, fmt.Errorf("account %d (%s): credential is required", i, entry.Address)
		}
	}
	return f.Accounts, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, storage.ErrDuplicateKey)
}
