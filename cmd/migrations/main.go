package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pollpulse/api/internal/config"
)

func main() {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	basePath := filepath.Join(".", "internal", "adapters", "repository", "postgres", "migrations")

	files, err := upMigrations(basePath)
	if err != nil {
		log.Fatal(err)
	}
	if len(os.Args) > 1 {
		files, err = matchMigration(files, os.Args[1])
		if err != nil {
			log.Fatal(err)
		}
	}

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(basePath, name))
		if err != nil {
			log.Fatal(err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			log.Fatalf("Failed to execute %s: %v", name, err)
		}
		fmt.Printf("Applied %s\n", name)
	}
}

func upMigrations(basePath string) ([]string, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "up.sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

func matchMigration(files []string, name string) ([]string, error) {
	for _, f := range files {
		if strings.Contains(f, name) {
			return []string{f}, nil
		}
	}
	return nil, fmt.Errorf("migration file not found: %s", name)
}
