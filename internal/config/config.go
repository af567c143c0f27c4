package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/dl-alexandre/collsync/internal/utils"
)

const (
	// DefaultConfigFile is used when no --config flag is given
	DefaultConfigFile = "collsync.json"
	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "COLLSYNC_"
)

// User describes one local user folder and its remote credentials.
type User struct {
	// Name is the visible folder name under the data root
	Name string `json:"name" validate:"required"`

	// Login is the remote account login
	Login string `json:"login" validate:"required"`

	// Password may be empty, in which case it is fetched from the OS keyring
	Password string `json:"password"`

	// RootCollectionID optionally pins the user's remote root collection.
	// When set it must match what the service reports.
	RootCollectionID string `json:"rootCollectionId" validate:"omitempty,uuid"`
}

// Config holds application configuration, validated once at startup.
type Config struct {
	// APIURL is the base URL of the content management service
	APIURL string `json:"apiUrl" validate:"required,url"`

	// DataRoot is the local folder holding one subfolder per user
	DataRoot string `json:"dataRoot" validate:"required"`

	// ArchiveRoot receives retired files under their original relative paths.
	// Required only when a move policy is actually used.
	ArchiveRoot string `json:"archiveRoot"`

	// Users lists the accounts to synchronize
	Users []User `json:"users" validate:"min=1,dive"`

	// SupportedFormats are the uploadable file extensions (with dot)
	SupportedFormats []string `json:"supportedFormats"`

	// SkipPrefixes mark entries the scanner must ignore
	SkipPrefixes []string `json:"skipPrefixes"`

	// GlobalLimit caps uploads for the whole run, -1 means unbounded
	GlobalLimit int `json:"globalLimit" validate:"min=-1"`

	// RequestTimeout bounds every remote call, in seconds
	RequestTimeout int `json:"requestTimeout" validate:"min=1"`

	// JournalPath is the sqlite run journal location, empty disables it
	JournalPath string `json:"journalPath"`

	// DryRun previews actions without remote calls or local changes
	DryRun bool `json:"dryRun"`

	// LogLevel sets the logging verbosity (debug, info, warn, error)
	LogLevel string `json:"logLevel" validate:"omitempty,oneof=debug info warn error"`

	// LogFile is an optional JSON log destination
	LogFile string `json:"logFile"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		SupportedFormats: append([]string(nil), utils.DefaultFormats...),
		SkipPrefixes:     []string{"_", "."},
		GlobalLimit:      -1,
		RequestTimeout:   30,
		LogLevel:         "info",
	}
}

// Load reads the config file, applies environment overrides, expands home
// directories and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConfigInvalid,
			fmt.Sprintf("Failed to read config file: %s", err)).
			WithContext("path", path).
			Build()
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConfigInvalid,
			fmt.Sprintf("Failed to parse config file: %s", err)).
			WithContext("path", path).
			Build()
	}

	applyEnvOverrides(cfg)

	if err := expandPaths(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks a config against its struct tags and cross-field rules.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return utils.NewAppError(utils.ErrCodeConfigInvalid,
			fmt.Sprintf("Invalid configuration: %s", err)).
			Build()
	}
	for _, format := range cfg.SupportedFormats {
		if !strings.HasPrefix(format, ".") {
			return utils.NewAppError(utils.ErrCodeConfigInvalid,
				fmt.Sprintf("Supported format %q must start with a dot", format)).
				Build()
		}
	}
	return nil
}

func expandPaths(cfg *Config) error {
	for _, p := range []*string{&cfg.DataRoot, &cfg.ArchiveRoot, &cfg.JournalPath, &cfg.LogFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeConfigInvalid,
				fmt.Sprintf("Failed to expand path %q: %s", *p, err)).
				Build()
		}
		*p = expanded
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv(EnvPrefix + "DATA_ROOT"); v != "" {
		cfg.DataRoot = v
	}
	if v := os.Getenv(EnvPrefix + "ARCHIVE_ROOT"); v != "" {
		cfg.ArchiveRoot = v
	}
	if v := os.Getenv(EnvPrefix + "JOURNAL_PATH"); v != "" {
		cfg.JournalPath = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv(EnvPrefix + "GLOBAL_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.GlobalLimit = limit
		}
	}
	if v := os.Getenv(EnvPrefix + "REQUEST_TIMEOUT"); v != "" {
		if timeout, err := strconv.Atoi(v); err == nil {
			cfg.RequestTimeout = timeout
		}
	}
	if v := os.Getenv(EnvPrefix + "DRY_RUN"); v != "" {
		if dryRun, err := strconv.ParseBool(v); err == nil {
			cfg.DryRun = dryRun
		}
	}
}
