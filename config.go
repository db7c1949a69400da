package duckdb

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"
)

// Config holds engine options applied at database open time. The zero value
// opens with engine defaults. Fields map onto the engine's own configuration
// keys; Extra carries any key the struct does not name.
type Config struct {
	// AccessMode is "automatic", "read_only" or "read_write".
	AccessMode string `mapstructure:"access_mode,omitempty"`
	// Threads caps the number of engine worker threads.
	Threads int `mapstructure:"threads,omitempty"`
	// MaxMemory is the memory limit, e.g. "2GB".
	MaxMemory string `mapstructure:"max_memory,omitempty"`
	// TempDirectory is where the engine spills larger-than-memory state.
	TempDirectory string `mapstructure:"temp_directory,omitempty"`
	// DefaultOrder is "asc" or "desc".
	DefaultOrder string `mapstructure:"default_order,omitempty"`

	Extra map[string]string `mapstructure:"-"`
}

// options flattens the config into the engine's key/value form, in stable order.
func (c *Config) options() ([][2]string, error) {
	flat := map[string]string{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &flat,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	// Unset struct fields decode to "" or "0"; drop them before merging Extra
	// so an explicit Extra value is never mistaken for an unset field.
	for k, v := range flat {
		if v == "" || v == "0" {
			delete(flat, k)
		}
	}
	for k, v := range c.Extra {
		flat[k] = v
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	opts := make([][2]string, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, [2]string{k, flat[k]})
	}
	return opts, nil
}
