package config

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// VerifyConfigOnStartup runs all checks to ensure a valid config file exists and is updated.
// This should be called when the application starts.
func VerifyConfigOnStartup(configPath string) {
	if err := EnsureConfigExists(configPath); err != nil {
		log.Printf("Error ensuring config exists: %v", err)
		return
	}
	if err := EnsureConfigUpdated(configPath); err != nil {
		log.Printf("Error updating config: %v", err)
	}
}

// EnsureConfigExists checks if a config file is present. If not, it copies
// example-config.toml from the working directory or writes the defaults.
func EnsureConfigExists(configPath string) error {
	if _, err := os.Stat(filepath.Dir(configPath)); os.IsNotExist(err) {
		err = os.MkdirAll(filepath.Dir(configPath), os.ModePerm)
		if err != nil {
			return err
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if _, err := os.Stat("example-config.toml"); err == nil {
			err = copyFile("example-config.toml", configPath)
			if err == nil {
				return nil
			}
			log.Printf("Failed to copy example config: %v. Writing defaults.", err)
		}

		if err := SaveConfig(CreateDefaultConfig(), configPath); err != nil {
			return fmt.Errorf("failed to create default config: %w", err)
		}
	}
	return nil
}

// EnsureConfigUpdated adds sections and keys introduced by newer versions,
// taking their values from the defaults. Values already present are kept.
func EnsureConfigUpdated(configPath string) error {
	// Read the raw TOML file to check which fields are actually present
	var rawConfig map[string]any
	if _, err := toml.DecodeFile(configPath, &rawConfig); err != nil {
		return err
	}

	defaults, err := toMap(CreateDefaultConfig())
	if err != nil {
		return err
	}

	added := mergeMissing(rawConfig, defaults, "")
	if len(added) == 0 {
		return nil
	}

	log.Printf("Config updated with new keys: %s", strings.Join(added, ", "))
	return writeMap(configPath, rawConfig)
}

// mergeMissing copies keys of src that are absent from dst, recursing into
// tables, and returns the dotted names it added.
func mergeMissing(dst, src map[string]any, prefix string) []string {
	var added []string
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sv := src[k]
		dv, exists := dst[k]
		if !exists {
			dst[k] = sv
			added = append(added, prefix+k)
			continue
		}
		subSrc, srcIsTable := sv.(map[string]any)
		subDst, dstIsTable := dv.(map[string]any)
		if srcIsTable && dstIsTable {
			added = append(added, mergeMissing(subDst, subSrc, prefix+k+".")...)
		}
	}
	return added
}

// SetValue assigns a single dotted key (e.g. "scheduler.poll_interval_seconds")
// in the file at configPath. The raw value is parsed to the type of the
// existing default so the result still decodes into Config.
func SetValue(configPath, key, raw string) error {
	var rawConfig map[string]any
	if _, err := toml.DecodeFile(configPath, &rawConfig); err != nil {
		return err
	}
	defaults, err := toMap(CreateDefaultConfig())
	if err != nil {
		return err
	}
	mergeMissing(rawConfig, defaults, "")

	section, field, ok := strings.Cut(key, ".")
	if !ok {
		return fmt.Errorf("key must be <section>.<name>, got %q", key)
	}
	table, ok := rawConfig[section].(map[string]any)
	if !ok {
		return fmt.Errorf("unknown config section %q", section)
	}
	current, ok := table[field]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}

	switch current.(type) {
	case bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s expects true or false: %w", key, err)
		}
		table[field] = v
	case int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%s expects an integer: %w", key, err)
		}
		table[field] = v
	default:
		table[field] = raw
	}

	// Decode before writing so a value the loader would reject never lands on disk.
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(rawConfig); err != nil {
		return err
	}
	var cfg Config
	if _, err := toml.Decode(buf.String(), &cfg); err != nil {
		return err
	}
	ApplyEnvOverrides(&cfg)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	return os.WriteFile(configPath, buf.Bytes(), 0o644)
}

func toMap(cfg *Config) (map[string]any, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	var m map[string]any
	if _, err := toml.Decode(buf.String(), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func writeMap(configPath string, m map[string]any) error {
	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(m)
}
