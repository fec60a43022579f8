// Package config supplies CLI defaults from CHUNKMINE_* environment
// variables, optionally read from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvPreset       = "CHUNKMINE_PRESET"
	EnvPatterns     = "CHUNKMINE_PATTERNS"
	EnvPatternID    = "CHUNKMINE_PATTERN_ID"
	EnvFormat       = "CHUNKMINE_FORMAT"
	EnvEncoding     = "CHUNKMINE_ENCODING"
	EnvLogLevel     = "CHUNKMINE_LOG_LEVEL"
	EnvDir          = "CHUNKMINE_DIR"
	EnvGlob         = "CHUNKMINE_GLOB"
	EnvDB           = "CHUNKMINE_DB"
	EnvMaxLineBytes = "CHUNKMINE_MAX_LINE_BYTES"
)

// Config holds the defaults the CLI starts from. Flags override them.
type Config struct {
	Preset       string // embedded preset name
	PatternFile  string // pattern definition file, takes precedence over Preset
	PatternID    string // pattern to select from PatternFile
	Format       string // sink kind
	Encoding     string // input charset label
	LogLevel     string
	Dir          string // directory searched by follow when no file is given
	Glob         string // file name pattern used with Dir
	DBPath       string // sqlite sink database
	MaxLineBytes int
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Format:       "csv",
		LogLevel:     "warn",
		Glob:         "*.log",
		DBPath:       "chunkmine.db",
		MaxLineBytes: 1024 * 1024,
	}
}

// Load reads configuration from the environment. If envFile is set it must
// exist and is loaded first; otherwise a .env file in the current directory
// is loaded when present. Variables already set take precedence over file
// values.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	def := Default()
	cfg := &Config{
		Preset:      getEnv(EnvPreset, def.Preset),
		PatternFile: getEnv(EnvPatterns, def.PatternFile),
		PatternID:   getEnv(EnvPatternID, def.PatternID),
		Format:      strings.ToLower(getEnv(EnvFormat, def.Format)),
		Encoding:    getEnv(EnvEncoding, def.Encoding),
		LogLevel:    strings.ToLower(getEnv(EnvLogLevel, def.LogLevel)),
		Dir:         getEnv(EnvDir, def.Dir),
		Glob:        getEnv(EnvGlob, def.Glob),
		DBPath:      getEnv(EnvDB, def.DBPath),
	}

	cfg.MaxLineBytes = def.MaxLineBytes
	if s := getEnv(EnvMaxLineBytes, ""); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%s must be a valid integer: %w", EnvMaxLineBytes, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("%s must be greater than 0", EnvMaxLineBytes)
		}
		cfg.MaxLineBytes = n
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
