// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/rbberger/bueno/internal/engine"
	"github.com/rbberger/bueno/internal/experiment"
	"github.com/rbberger/bueno/internal/issue"
	"github.com/rbberger/bueno/pkg/cueutil"
)

const (
	// AppName is the application name, used for the config directory.
	AppName = "bueno"
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// StarterConfig is the template written by 'bueno config init'. Every field
// is commented out so the file documents the schema without overriding the
// built-in defaults.
const StarterConfig = `// bueno configuration
//
// Uncomment and adjust the fields you want to change. Unset fields fall
// back to the built-in defaults.

// default_runtime: "none" // none | docker | podman | charliecloud
// output_path:     "bueno-out/%n/%d/%i"
// post_fingerprint: false
// keep_going:       false
// ui: {
// 	verbose: false
// 	echo:    false
// }
`

type (
	// Config is bueno's resolved user configuration.
	Config struct {
		// DefaultRuntime dispatches containerized activities when a runfile
		// does not choose a runtime.
		DefaultRuntime string `mapstructure:"default_runtime"`
		// OutputPath is the output path template for experiments.
		OutputPath string `mapstructure:"output_path"`
		// PostFingerprint samples a second fingerprint after each activity.
		PostFingerprint bool `mapstructure:"post_fingerprint"`
		// KeepGoing continues past failed activities.
		KeepGoing bool `mapstructure:"keep_going"`
		// UI groups presentation settings.
		UI UIConfig `mapstructure:"ui"`
	}

	// UIConfig groups presentation settings.
	UIConfig struct {
		Verbose bool `mapstructure:"verbose"`
		Echo    bool `mapstructure:"echo"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultRuntime: string(engine.KindNone),
		OutputPath:     experiment.DefaultOutputTemplate,
	}
}

// ConfigDir returns bueno's configuration directory using platform
// conventions: %APPDATA% on Windows, ~/Library/Application Support on macOS,
// $XDG_CONFIG_HOME (default ~/.config) elsewhere.
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// Load resolves the configuration. When path is non-empty that file is used
// exclusively; otherwise the platform config directory and then the current
// directory are searched. A missing file yields the defaults. The returned
// string is the path of the file actually loaded, or "".
func Load(path string) (*Config, string, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("default_runtime", defaults.DefaultRuntime)
	v.SetDefault("output_path", defaults.OutputPath)
	v.SetDefault("post_fingerprint", defaults.PostFingerprint)
	v.SetDefault("keep_going", defaults.KeepGoing)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.echo", defaults.UI.Echo)

	resolvedPath := ""

	if path != "" {
		if !fileExists(path) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'bueno config show' to see the effective configuration").
				Wrap(fmt.Errorf("config file not found: %s", path)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", wrapLoadError(err, path)
		}
		resolvedPath = path
	} else {
		cfgDir, err := ConfigDir()
		if err != nil {
			return nil, "", err
		}
		candidates := []string{
			filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
			ConfigFileName + "." + ConfigFileExt,
		}
		for _, candidate := range candidates {
			if !fileExists(candidate) {
				continue
			}
			if err := loadCUEIntoViper(v, candidate); err != nil {
				return nil, "", wrapLoadError(err, candidate)
			}
			resolvedPath = candidate
			break
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, resolvedPath, nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into
// Viper. Config decodes to a map rather than through cueutil.ParseAndDecode
// because all fields are optional (Concrete(false)) and Viper needs the raw
// map for layering over defaults.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	return v.MergeConfigMap(configMap)
}

func wrapLoadError(err error, path string) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the values match the configuration schema").
		Wrap(err).
		BuildError()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
