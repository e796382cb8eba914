package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"b2b/internal/transform"
)

// Config represents the b2b configuration file (~/.config/b2b/config.yaml).
// Boolean fields are pointers so "not set" can be told apart from false.
type Config struct {
	Digest   *bool  `yaml:"digest"`
	Verify   *bool  `yaml:"verify"`
	InPlace  *bool  `yaml:"in_place"`
	KeepName *bool  `yaml:"keep_name"`
	LogLevel string `yaml:"log_level"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "b2b", "config.yaml")
}

// loadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or cannot be parsed.
func loadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// applyConvertConfig applies config file defaults to the pack/unpack flag
// variables when the corresponding CLI flag was not explicitly set. Nil
// destinations are flags the command does not expose.
func applyConvertConfig(c *cli.Command, cfg Config, digest, verify, inPlace, keepName *bool) {
	if digest != nil && cfg.Digest != nil && !c.IsSet("digest") {
		*digest = *cfg.Digest
	}
	if verify != nil && cfg.Verify != nil && !c.IsSet("verify") {
		*verify = *cfg.Verify
	}
	if inPlace != nil && cfg.InPlace != nil && !c.IsSet("in-place") {
		*inPlace = *cfg.InPlace
	}
	if keepName != nil && cfg.KeepName != nil && !c.IsSet("keep-name") {
		*keepName = *cfg.KeepName
	}
}

// optionsFromConfig builds the defaults the extension-driven root action
// runs with; there are no per-invocation flags on that path.
func optionsFromConfig(cfg Config) transform.Options {
	var opts transform.Options
	if cfg.Digest != nil {
		opts.Digest = *cfg.Digest
	}
	if cfg.Verify != nil {
		opts.Verify = *cfg.Verify
	}
	if cfg.InPlace != nil {
		opts.InPlace = *cfg.InPlace
	}
	if cfg.KeepName != nil {
		opts.KeepName = *cfg.KeepName
	}
	return opts
}
