// Command migrate creates or updates the whiteboard schema and can seed the
// users directory
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ericfitz/whiteboard/internal/config"
	"github.com/ericfitz/whiteboard/internal/database"
	"github.com/ericfitz/whiteboard/internal/profile"
	"github.com/ericfitz/whiteboard/internal/secrets"
	"github.com/ericfitz/whiteboard/internal/slogging"
)

type userSeeds []string

func (u *userSeeds) String() string { return strings.Join(*u, ",") }

func (u *userSeeds) Set(v string) error {
	*u = append(*u, v)
	return nil
}

func main() {
	var seeds userSeeds
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Var(&seeds, "user", "Seed a user as id:display name[:email] (repeatable)")
	flag.Parse()

	if err := run(*configFile, seeds); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string, seeds []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	provider, err := secrets.NewProvider(ctx, cfg.Secrets)
	if err != nil {
		return err
	}
	if err := secrets.Apply(ctx, provider, cfg); err != nil {
		return err
	}

	logger := slogging.Get()
	db, err := database.Open(cfg.Database, database.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	logger.Info("Running migrations against %s database", db.Type())
	if err := db.AutoMigrate(); err != nil {
		return err
	}
	logger.Info("Migrations completed successfully")

	if len(seeds) == 0 {
		return nil
	}
	directory := profile.NewGormDirectory(db.Gorm())
	for _, seed := range seeds {
		parts := strings.SplitN(seed, ":", 3)
		if len(parts) < 2 || parts[0] == "" {
			return fmt.Errorf("invalid user seed %q, want id:display name[:email]", seed)
		}
		email := ""
		if len(parts) == 3 {
			email = parts[2]
		}
		if err := directory.Save(ctx, parts[0], parts[1], email); err != nil {
			return err
		}
		logger.Info("Seeded user %s", parts[0])
	}
	return nil
}
