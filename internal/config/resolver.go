package config

import "time"

// Resolver handles configuration precedence: CLI flags > config file > defaults.
// Defaults are already applied to the config by Load and Default.
type Resolver struct {
	config  *Config
	changed func(flag string) bool
}

// NewResolver creates a new configuration resolver. changed reports whether
// a flag was set on the command line.
func NewResolver(config *Config, changed func(flag string) bool) *Resolver {
	if changed == nil {
		changed = func(string) bool { return false }
	}
	return &Resolver{config: config, changed: changed}
}

// String returns flagValue when flag was set, configValue otherwise.
func (r *Resolver) String(flag, flagValue, configValue string) string {
	if r.changed(flag) {
		return flagValue
	}
	return configValue
}

// Bool returns flagValue when flag was set, configValue otherwise.
func (r *Resolver) Bool(flag string, flagValue, configValue bool) bool {
	if r.changed(flag) {
		return flagValue
	}
	return configValue
}

// Duration returns flagValue when flag was set, configValue otherwise.
func (r *Resolver) Duration(flag string, flagValue, configValue time.Duration) time.Duration {
	if r.changed(flag) {
		return flagValue
	}
	return configValue
}

// BuildArgs merges build args from the config with those given on the
// command line. Command line values win per key.
func (r *Resolver) BuildArgs(flagValue map[string]string) map[string]string {
	merged := make(map[string]string, len(r.config.Builder.BuildArgs)+len(flagValue))
	for k, v := range r.config.Builder.BuildArgs {
		merged[k] = v
	}
	for k, v := range flagValue {
		merged[k] = v
	}
	return merged
}
