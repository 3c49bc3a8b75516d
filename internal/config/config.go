// Package config loads introbook configuration.
//
// Configuration files are CUE. They are unified with an embedded #Config
// schema that supplies defaults and rejects unknown fields, so an empty
// file (or no file) yields a complete configuration.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/introbook/internal/address"
	"github.com/roach88/introbook/internal/runtime"
)

//go:embed schema.cue
var schemaCUE string

// DefaultProgramID is the namespace used when program_id is empty.
var DefaultProgramID = address.HashKey("introbook/program/v1")

// Config is the decoded configuration.
type Config struct {
	Database     string       `json:"database"`
	ProgramID    string       `json:"program_id"`
	Rent         runtime.Rent `json:"rent"`
	StrictUpdate bool         `json:"strict_update"`
	LogLevel     string       `json:"log_level"`
}

// ConfigError describes an invalid configuration file.
type ConfigError struct {
	Path    string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %s", e.Message)
	}
	return fmt.Sprintf("config %s: %s", e.Path, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Default returns the configuration produced by an empty file.
func Default() Config {
	cfg, err := Parse("", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// Load reads and validates the CUE file at path. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &ConfigError{Path: path, Message: "cannot read file", Err: err}
	}
	return Parse(path, src)
}

// Parse validates src against the schema. filename is used in error
// positions only.
func Parse(filename string, src []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, &ConfigError{Message: "compiling schema", Err: err}
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return Config{}, newConfigError(filename, err)
	}
	value := def.Unify(user)

	if err := value.Validate(cue.Concrete(true)); err != nil {
		return Config{}, newConfigError(filename, err)
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return Config{}, newConfigError(filename, err)
	}
	if _, err := cfg.ProgramKey(); err != nil {
		return Config{}, &ConfigError{Path: filename, Message: "program_id is not a valid public key", Err: err}
	}
	return cfg, nil
}

func newConfigError(path string, err error) *ConfigError {
	msg := err.Error()
	var cerr cueerrors.Error
	if errors.As(err, &cerr) {
		msg = cueerrors.Details(err, nil)
	}
	return &ConfigError{Path: path, Message: msg, Err: err}
}

// ProgramKey returns the configured program id.
func (c Config) ProgramKey() (address.PublicKey, error) {
	if c.ProgramID == "" {
		return DefaultProgramID, nil
	}
	return address.ParsePublicKey(c.ProgramID)
}

// SlogLevel maps log_level to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
