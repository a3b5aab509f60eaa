// Command check-db verifies that the configured database and Redis are
// reachable and that the whiteboard tables exist
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ericfitz/whiteboard/internal/config"
	"github.com/ericfitz/whiteboard/internal/database"
	"github.com/ericfitz/whiteboard/internal/secrets"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	ok, err := check(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("\n⚠ Some tables are missing. Run the migrate command to create them.")
		os.Exit(2)
	}
	fmt.Println("\n✓ All checks passed")
}

func check(configFile string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(configFile)
	if err != nil {
		return false, fmt.Errorf("failed to load configuration: %w", err)
	}
	provider, err := secrets.NewProvider(ctx, cfg.Secrets)
	if err != nil {
		return false, err
	}
	if err := secrets.Apply(ctx, provider, cfg); err != nil {
		return false, err
	}

	db, err := database.Open(cfg.Database, database.Options{})
	if err != nil {
		return false, err
	}
	defer func() { _ = db.Close() }()
	if err := db.Ping(ctx); err != nil {
		return false, err
	}
	fmt.Printf("✓ Connected to %s database\n\n", db.Type())

	fmt.Println("Checking tables:")
	allTablesExist := true
	migrator := db.Gorm().Migrator()
	for _, model := range database.AllModels() {
		name := tableName(model)
		if migrator.HasTable(model) {
			fmt.Printf("  ✓ %s\n", name)
			continue
		}
		fmt.Printf("  ✗ %s (missing)\n", name)
		allTablesExist = false
	}

	if cfg.Redis.Enabled {
		client, err := database.OpenRedis(ctx, cfg, false)
		if err != nil {
			return false, err
		}
		_ = client.Close()
		fmt.Printf("\n✓ Connected to Redis at %s\n", cfg.RedisAddress())
	}

	return allTablesExist, nil
}

func tableName(model interface{}) string {
	if t, ok := model.(interface{ TableName() string }); ok {
		return t.TableName()
	}
	return fmt.Sprintf("%T", model)
}
