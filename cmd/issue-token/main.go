// Command issue-token signs a development token with the configured secret
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ericfitz/whiteboard/auth"
	"github.com/ericfitz/whiteboard/internal/config"
	"github.com/ericfitz/whiteboard/internal/secrets"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	userID := flag.String("user", "", "User id to put in the token")
	name := flag.String("name", "", "Optional display name claim")
	ttl := flag.Duration("ttl", time.Hour, "Token lifetime")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "issue-token: -user is required")
		os.Exit(2)
	}

	token, err := issue(*configFile, *userID, *name, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue-token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func issue(configFile, userID, name string, ttl time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(configFile)
	if err != nil {
		return "", err
	}
	provider, err := secrets.NewProvider(ctx, cfg.Secrets)
	if err != nil {
		return "", err
	}
	if err := secrets.Apply(ctx, provider, cfg); err != nil {
		return "", err
	}

	verifier, err := auth.NewJWTVerifier(cfg.Auth.JWT, nil)
	if err != nil {
		return "", err
	}
	return verifier.CreateToken(userID, name, ttl)
}
