package surfacegen

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/broady/surface/surfacegen/sink"
)

// ConfigFileName is the optional configuration file read from the working
// directory.
const ConfigFileName = "surface.toml"

// Defaults of Config.
const (
	DefaultAPIDir      = "api"
	DefaultRoutesOut   = "routes_gen.go"
	DefaultBindingsDir = "bindings"
	DefaultBaseURL     = "http://localhost:3030/api"
)

// Config holds the configuration for code generation. Relative paths are
// resolved against Dir.
type Config struct {
	// Dir is the project directory holding the API tree and receiving the
	// generated files. Default: the working directory.
	Dir string `toml:"-"`

	// APIDir is the root of the handler tree, relative to Dir.
	// Default: "api"
	APIDir string `toml:"api_dir"`

	// RoutesOut is the routing file, relative to Dir.
	// Default: "routes_gen.go"
	RoutesOut string `toml:"routes_out"`

	// BindingsDir receives the TypeScript bindings, relative to Dir.
	// Default: "bindings"
	BindingsDir string `toml:"bindings_dir"`

	// RoutesTemplate, FunctionTemplate and CallAPITemplate are template files
	// replacing the built-in ones.
	RoutesTemplate   string `toml:"routes_template"`
	FunctionTemplate string `toml:"function_template"`
	CallAPITemplate  string `toml:"callapi_template"`

	// BaseURL is the API prefix the bindings send requests to.
	// Default: "http://localhost:3030/api"
	BaseURL string `toml:"base_url"`

	// ImportPath is the import path of APIDir. By default it is derived from
	// the enclosing go.mod.
	ImportPath string `toml:"import_path"`

	// Concurrency bounds the number of files parsed at once.
	// Default: GOMAXPROCS.
	Concurrency int `toml:"concurrency"`
}

// LoadConfigFile decodes a TOML configuration file. Unknown keys are an
// error, so that typos do not go unnoticed.
func LoadConfigFile(name string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(name, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load %s: %w", name, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slices.Sort(keys)
		return Config{}, fmt.Errorf("load %s: unknown keys: %s", name, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// LoadConfig reads ConfigFileName from dir if it exists and returns the zero
// Config otherwise. Dir is set on the result.
func LoadConfig(dir string) (Config, error) {
	name := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
		return Config{Dir: dir}, nil
	}
	cfg, err := LoadConfigFile(name)
	if err != nil {
		return Config{}, err
	}
	cfg.Dir = dir
	return cfg, nil
}

// applyConfigDefaults returns a copy of cfg with defaults filled in and the
// output paths normalized to clean slash-separated form.
func applyConfigDefaults(cfg *Config) *Config {
	result := *cfg

	if result.Dir == "" {
		result.Dir = "."
	}
	if result.APIDir == "" {
		result.APIDir = DefaultAPIDir
	}
	if result.RoutesOut == "" {
		result.RoutesOut = DefaultRoutesOut
	}
	if result.BindingsDir == "" {
		result.BindingsDir = DefaultBindingsDir
	}
	if result.BaseURL == "" {
		result.BaseURL = DefaultBaseURL
	}

	result.APIDir = path.Clean(filepath.ToSlash(result.APIDir))
	result.RoutesOut = path.Clean(filepath.ToSlash(result.RoutesOut))
	result.BindingsDir = path.Clean(filepath.ToSlash(result.BindingsDir))
	return &result
}

// validate checks the paths of a defaulted Config.
func (c *Config) validate() error {
	for _, p := range []struct{ name, value string }{
		{"api_dir", c.APIDir},
		{"routes_out", c.RoutesOut},
		{"bindings_dir", c.BindingsDir},
	} {
		if err := sink.ValidatePath(p.value); err != nil {
			return fmt.Errorf("%s %q: %w", p.name, p.value, err)
		}
	}
	if path.Ext(c.RoutesOut) != ".go" {
		return fmt.Errorf("routes_out %q: must be a .go file", c.RoutesOut)
	}
	// The routing file is package main and would be scanned as a handler.
	if strings.HasPrefix(c.RoutesOut, c.APIDir+"/") {
		return fmt.Errorf("routes_out %q: must not be inside api_dir %q", c.RoutesOut, c.APIDir)
	}
	return nil
}
