// Package config loads the YAML settings file that describes a router instance: its couplers,
// publishers, filters, applications, and servers, grounded on the Python original's
// router_common/configuration.py (NavigationConfiguration.build_configuration).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Component describes one configured object: its name, the registry class it is built from, an optional
// named factory method on that class, and its free-form parameters. Grounded on the original's
// NavigationServerObject / Parameters pair.
type Component struct {
	Name    string
	Class   string
	Factory string
	Params  map[string]interface{}
}

// UnmarshalYAML accepts the original's flat-map-per-object shape (`name`, `class`, `factory` pulled out of
// the same map that also holds the object's own parameters) rather than requiring a nested `params` key.
// A single-key mapping whose value is itself a mapping (`<instance name>: {class: ..., ...}`) is also
// accepted: the key becomes the name and the inner mapping holds class, factory and parameters.
func (c *Component) UnmarshalYAML(value *yaml.Node) error {
	raw := map[string]interface{}{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if len(raw) == 1 {
		for key, v := range raw {
			if inner, ok := v.(map[string]interface{}); ok {
				if _, hasName := inner["name"]; !hasName {
					inner["name"] = key
				}
				raw = inner
			}
		}
	}

	c.Params = raw
	if name, ok := raw["name"].(string); ok {
		c.Name = name
	}
	if class, ok := raw["class"].(string); ok {
		c.Class = class
	}
	if factory, ok := raw["factory"].(string); ok {
		c.Factory = factory
	}
	if c.Name == "" {
		return fmt.Errorf("config: component missing required 'name' field")
	}
	return nil
}

// Config is the top-level settings document.
type Config struct {
	ServerName string `yaml:"server_name"`
	Function   string `yaml:"function"`
	DataDir    string `yaml:"data_dir"`
	TraceDir   string `yaml:"trace_dir"`
	LogLevel   string `yaml:"log_level"`

	Features     []string    `yaml:"features"`
	Processes    []Component `yaml:"processes"`
	Couplers     []Component `yaml:"couplers"`
	Publishers   []Component `yaml:"publishers"`
	Services     []Component `yaml:"services"`
	Filters      []Component `yaml:"filters"`
	Applications []Component `yaml:"applications"`
	Functions    []Component `yaml:"functions"`
	Servers      []Component `yaml:"servers"`
}

// defaultTraceDir matches the original's fallback when trace_dir is absent or does not name an existing
// directory.
const defaultTraceDir = "/var/log"

// Load reads and parses a YAML settings file, filling in the original's documented defaults for optional
// top-level fields (server_name, trace_dir).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if cfg.ServerName == "" {
		cfg.ServerName = "MessageServer(Default)"
	}
	if cfg.TraceDir == "" {
		cfg.TraceDir = defaultTraceDir
	} else if info, err := os.Stat(cfg.TraceDir); err != nil || !info.IsDir() {
		cfg.TraceDir = defaultTraceDir
	}

	hasMain := false
	for _, s := range cfg.Servers {
		if s.Name == "Main" {
			hasMain = true
			break
		}
	}
	if !hasMain {
		return nil, fmt.Errorf("config: %s: the 'Main' server is missing -> invalid configuration", path)
	}

	return &cfg, nil
}

// String helpers on Component.Params, matching the original's Parameters.get/getlist convenience API.

// String returns params[key] as a string, or def if absent/not a string.
func (c Component) String(key, def string) string {
	if v, ok := c.Params[key].(string); ok {
		return v
	}
	return def
}

// Int returns params[key] as an int, or def if absent/not a number.
func (c Component) Int(key string, def int) int {
	switch v := c.Params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// Bool returns params[key] as a bool, or def if absent/not a bool.
func (c Component) Bool(key string, def bool) bool {
	if v, ok := c.Params[key].(bool); ok {
		return v
	}
	return def
}

// StringList returns params[key] as a []string, or def if absent/not a list.
func (c Component) StringList(key string, def []string) []string {
	raw, ok := c.Params[key].([]interface{})
	if !ok {
		return def
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
