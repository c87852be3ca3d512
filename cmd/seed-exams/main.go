package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/database"
	"github.com/stemsi/exstem-session/internal/logger"
	"github.com/stemsi/exstem-session/internal/repository"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stemsi/exstem-session/internal/validator"
	"golang.org/x/term"
)

func main() {
	var (
		path        string
		interactive bool
	)
	flag.StringVar(&path, "catalog", "", "Catalog file to import (defaults to CATALOG_PATH)")
	flag.BoolVar(&interactive, "tokens", term.IsTerminal(int(syscall.Stdin)), "Prompt for an entry token per exam")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	if path == "" {
		path = cfg.CatalogPath
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// ─── Read Catalog ──────────────────────────────────────────────────
	catalog, err := repository.LoadFileCatalog(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to load catalog")
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	store := repository.NewPostgresCatalog(pool)
	exams := service.NewExamService(store, rdb, log)

	fmt.Printf("=== Importing exams from %s ===\n", path)

	for _, def := range catalog.Definitions() {
		if interactive {
			fmt.Printf("Entry token for %q (empty keeps the file value): ", def.Title)
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println() // Newline after token input
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error reading entry token")
				os.Exit(1)
			}
			if token := string(raw); token != "" {
				hash, err := service.HashEntryToken(token, cfg.BcryptCost)
				if err != nil {
					log.Fatal().Err(err).Msg("Failed to hash entry token")
				}
				def.EntryTokenHash = hash
			}
		}

		if err := store.Upsert(ctx, def); err != nil {
			log.Fatal().Err(err).Str("exam_id", def.ID).Msg("Failed to upsert exam")
		}
		// Running servers pick the edit up on their next read.
		if err := exams.Invalidate(ctx, def.ID); err != nil {
			log.Warn().Err(err).Str("exam_id", def.ID).Msg("Failed to invalidate exam cache")
		}
		fmt.Printf("  %-12s %-36s %3d questions  token=%t\n",
			def.ID, def.Title, len(def.Questions), def.RequiresEntryToken())
	}

	fmt.Println("Done.")
}
