package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
)

// ExportEnvConfig controls ExportEnvFile.
type ExportEnvConfig struct {
	OutputPath  string
	Environment string
	SSM         *SSMManager
	Inventory   []BootstrapStep
	Stderr      io.Writer

	// IncludeLocalDefaults adds the settings a local run needs besides the
	// stored credentials.
	IncludeLocalDefaults bool
}

// localDefaults are written when IncludeLocalDefaults is set.
var localDefaults = map[string]string{
	"APP_ENV":            "local",
	"LOG_LEVEL":          "debug",
	"PLATFORM_STUB_MODE": "false",
	"METRICS_BACKEND":    "prometheus",
}

// ExportEnvFile reads every inventory parameter back from SSM and writes a
// .env file the service loads at startup. Missing parameters are left out.
// The file is created with 0600 permissions. It returns the number of
// parameters exported.
func ExportEnvFile(ctx context.Context, cfg ExportEnvConfig) (int, error) {
	if cfg.OutputPath == "" {
		return 0, fmt.Errorf("export path must not be empty")
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	env := make(map[string]string, len(cfg.Inventory)+len(localDefaults))
	if cfg.IncludeLocalDefaults {
		for k, v := range localDefaults {
			env[k] = v
		}
	}

	exported := 0
	for _, step := range cfg.Inventory {
		if step.EnvVar == "" {
			continue
		}
		path := cfg.SSM.SSMPath(step.SSMCategoryKey)
		value, err := cfg.SSM.GetParameterValue(ctx, path, step.ParamType == ParamSecureString)
		if errors.Is(err, ErrParameterNotFound) {
			fmt.Fprintf(stderr, "  %-24s not set, skipped\n", step.EnvVar)
			continue
		}
		if err != nil {
			return exported, err
		}
		env[step.EnvVar] = value
		exported++
	}

	content, err := godotenv.Marshal(env)
	if err != nil {
		return exported, fmt.Errorf("encoding env file: %w", err)
	}
	header := fmt.Sprintf("# Exported from SSM /%s/contentpilot/ by cmd/ops/bootstrap.\n# Contains secrets. Do not commit.\n", cfg.Environment)
	if err := os.WriteFile(cfg.OutputPath, []byte(header+content+"\n"), 0o600); err != nil {
		return exported, fmt.Errorf("writing %s: %w", cfg.OutputPath, err)
	}
	return exported, nil
}
