// Package config loads the deploykit process configuration. The format is
// selected by file extension: .json, .yaml/.yml, or .hcl.
package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 📚 Config is the complete deploykit process configuration. It describes
// where deployment outcomes are recorded and how destinations are treated;
// the per-repository instruction document is a separate concern.
type Config struct {
	// DatabasePath is the sqlite file backing the status table.
	DatabasePath string `json:"database_path" yaml:"database_path" hcl:"database_path"`

	// SharedExportDir is where export/import actions pass files between
	// independently deployed repositories.
	SharedExportDir string `json:"shared_export_dir" yaml:"shared_export_dir" hcl:"shared_export_dir"`

	// StagingDir is the neutral location files pass through on their way
	// into a privileged destination.
	StagingDir string `json:"staging_dir,omitempty" yaml:"staging_dir,omitempty" hcl:"staging_dir,optional"`

	// PrivilegedPrefixes lists destination path prefixes the deploying
	// process cannot write directly; copies there are staged and then moved
	// by PrivilegedUser.
	PrivilegedPrefixes []string `json:"privileged_prefixes,omitempty" yaml:"privileged_prefixes,omitempty" hcl:"privileged_prefixes,optional"`

	// PrivilegedUser performs the final move into privileged destinations.
	PrivilegedUser string `json:"privileged_user,omitempty" yaml:"privileged_user,omitempty" hcl:"privileged_user,optional"`

	// CloneTimeoutSeconds bounds the git clone of one repository.
	CloneTimeoutSeconds int `json:"clone_timeout_seconds,omitempty" yaml:"clone_timeout_seconds,omitempty" hcl:"clone_timeout_seconds,optional"`

	// InstructionFile is the instruction document's name at the workspace
	// root.
	InstructionFile string `json:"instruction_file,omitempty" yaml:"instruction_file,omitempty" hcl:"instruction_file,optional"`
}

// 🎯 Load reads and validates a configuration file.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	var cfg *Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		cfg, err = loadJSON(data)
	case ".yaml", ".yml":
		cfg, err = loadYAML(data)
	case ".hcl":
		cfg, err = loadHCL(data, path)
	default:
		return nil, errors.Errorf("unsupported config extension %q", ext)
	}
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// 🔍 Validate checks required fields and fills in defaults.
func (cfg *Config) Validate() error {
	if cfg.DatabasePath == "" {
		return errors.Errorf("database_path is required")
	}
	if cfg.SharedExportDir == "" {
		return errors.Errorf("shared_export_dir is required")
	}
	if len(cfg.PrivilegedPrefixes) > 0 {
		if cfg.StagingDir == "" {
			return errors.Errorf("staging_dir is required when privileged_prefixes is set")
		}
		if cfg.PrivilegedUser == "" {
			return errors.Errorf("privileged_user is required when privileged_prefixes is set")
		}
	}
	if cfg.CloneTimeoutSeconds <= 0 {
		cfg.CloneTimeoutSeconds = 60
	}
	if cfg.InstructionFile == "" {
		cfg.InstructionFile = "deploy.json"
	}
	return nil
}

// ⏱️ CloneTimeout returns the clone bound as a duration.
func (cfg *Config) CloneTimeout() time.Duration {
	return time.Duration(cfg.CloneTimeoutSeconds) * time.Second
}

// 🔒 IsPrivileged reports whether a destination path falls under a prefix
// the deploying process may not write directly.
func (cfg *Config) IsPrivileged(path string) bool {
	for _, prefix := range cfg.PrivilegedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func loadJSON(data []byte) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing JSON: %w", err)
	}
	return &cfg, nil
}

func loadYAML(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}

func loadHCL(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var cfg Config
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &cfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}
	return &cfg, nil
}
