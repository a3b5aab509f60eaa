package config

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseFlags parses command line flags and returns the config file path
func ParseFlags() (configFile string, generateConfig bool, err error) {
	flag.StringVar(&configFile, "config", "", "Path to configuration file")
	flag.BoolVar(&generateConfig, "generate-config", false, "Print an example configuration file and exit")

	help := flag.Bool("help", false, "Show help")

	flag.Parse()

	if *help {
		flag.Usage()
		os.Exit(0)
	}

	return configFile, generateConfig, nil
}

// GenerateExampleConfig writes the default configuration as YAML
func GenerateExampleConfig(w io.Writer) error {
	cfg := getDefaultConfig()
	cfg.Auth.JWT.Secret = "change-me"

	fmt.Fprintln(w, "# Whiteboard collaboration server configuration.")
	fmt.Fprintln(w, "# Every value can be overridden by the environment variable named in the source struct tags.")

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode example config: %w", err)
	}
	return enc.Close()
}
