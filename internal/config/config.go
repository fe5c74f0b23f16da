// Package config loads the kiln.yml project configuration using Viper.
//
// kiln.yml marks a project root. Every key can be overridden from the
// environment with the KILN_ prefix, dots replaced by underscores
// (KILN_SERVER_PORT overrides server.port).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// FileName is the project configuration file that marks a project root.
const FileName = "kiln.yml"

// Config is the parsed kiln.yml.
type Config struct {
	Name    string        `mapstructure:"name"`
	Build   BuildConfig   `mapstructure:"build"`
	Server  ServerConfig  `mapstructure:"server"`
	Test    TestConfig    `mapstructure:"test"`
	Watcher string        `mapstructure:"watcher"`
	Addons  []AddonConfig `mapstructure:"addons"`
	// Blueprint is the external generator command. {{blueprint}}, {{name}}
	// and {{args}} are substituted before it runs.
	Blueprint string `mapstructure:"blueprint"`
	// MinVersions maps package.json dependencies to the lowest version that
	// does not trigger an environment warning after a build.
	MinVersions map[string]string `mapstructure:"min_versions"`
}

// BuildConfig configures the external pipeline.
type BuildConfig struct {
	// Command runs the pipeline. {{output}} is replaced with the staging
	// directory the pipeline must write into.
	Command string   `mapstructure:"command"`
	Watch   []string `mapstructure:"watch"`
	Ignore  []string `mapstructure:"ignore"`
}

// ServerConfig configures the development server.
type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	Host           string `mapstructure:"host"`
	LiveReloadPort int    `mapstructure:"live_reload_port"`
	// MiddlewareDir holds index.yml, the project middleware module.
	MiddlewareDir string `mapstructure:"middleware_dir"`
	Compress      bool   `mapstructure:"compress"`
}

// TestConfig configures the test harness.
type TestConfig struct {
	Command string `mapstructure:"command"`
}

// AddonConfig declares an addon whose hooks are shell commands.
type AddonConfig struct {
	Name        string            `mapstructure:"name"`
	PreBuild    string            `mapstructure:"pre_build"`
	PostBuild   string            `mapstructure:"post_build"`
	OutputReady string            `mapstructure:"output_ready"`
	BuildError  string            `mapstructure:"build_error"`
	Headers     map[string]string `mapstructure:"headers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("build.command", "")
	v.SetDefault("build.watch", []string{"app", "public", "vendor"})
	v.SetDefault("build.ignore", []string{"node_modules", ".git", "dist", "tmp"})
	v.SetDefault("server.port", 4200)
	v.SetDefault("server.host", "")
	v.SetDefault("server.live_reload_port", 35729)
	v.SetDefault("server.middleware_dir", "server")
	v.SetDefault("server.compress", true)
	v.SetDefault("test.command", "")
	v.SetDefault("watcher", "")
	v.SetDefault("blueprint", "")
}

// Default returns the configuration used when kiln.yml sets nothing.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads kiln.yml from root and applies defaults and KILN_ environment
// overrides.
func Load(root string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filepath.Join(root, FileName))
	v.SetConfigType("yaml")
	v.SetEnvPrefix("KILN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", FileName, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", FileName, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
