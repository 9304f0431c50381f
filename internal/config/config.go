package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tapeworks/tapedeck/internal/logging"
)

// EnvPrefix namespaces every environment variable the deck reads.
const EnvPrefix = "TAPEDECK_"

// binding ties one options field to the sources a value may come from.
// The flag name is derived from the field name, so an explicitly set
// CLI flag shields its field from both file and environment.
type binding struct {
	field    reflect.Value
	flag     string
	tomlPath string
	envKey   string
}

// LoadConfig fills opts from the TOML file and TAPEDECK_* environment,
// with precedence CLI flag > environment > file > struct default. opts
// must be a pointer to a flat struct whose fields carry `toml` and
// `env` tags; its Config field names the file to read. cmd, when
// given, supplies which flags the operator set explicitly.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	bindings, configPath := bindFields(v)
	pinned := pinnedFlags(cmd)

	var file map[string]any
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err == nil {
			if err := toml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("parsing %s: %w", configPath, err)
			}
		}
	}

	for _, b := range bindings {
		if pinned[b.flag] {
			continue
		}
		if b.tomlPath != "" && file != nil {
			if value := tomlLookup(file, b.tomlPath); value != nil {
				assign(b.field, value)
			}
		}
		// Environment applies after the file so it wins between the two.
		if b.envKey != "" {
			if raw := os.Getenv(EnvPrefix + b.envKey); raw != "" {
				assignString(b.field, raw)
			}
		}
	}
	return nil
}

// bindFields walks the options struct and returns one binding per
// settable field, plus the config file path held by the Config field.
func bindFields(v reflect.Value) ([]binding, string) {
	t := v.Type()
	bindings := make([]binding, 0, v.NumField())
	var configPath string

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		ft := t.Field(i)
		if ft.Name == "Config" {
			configPath = field.String()
		}
		bindings = append(bindings, binding{
			field:    field,
			flag:     flagName(ft.Name),
			tomlPath: ft.Tag.Get("toml"),
			envKey:   ft.Tag.Get("env"),
		})
	}
	return bindings, configPath
}

// pinnedFlags reports which flags the operator set on the command line.
func pinnedFlags(cmd *cobra.Command) map[string]bool {
	pinned := make(map[string]bool)
	if cmd == nil {
		return pinned
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			pinned[f.Name] = true
		}
	})
	return pinned
}

// flagName derives the CLI flag for a field: "LoggingLevel" becomes
// "logging-level", matching how humacli names generated flags.
func flagName(fieldName string) string {
	var out []rune
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			out = append(out, '-')
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

// tomlLookup resolves a dotted path like "server.port" against the
// decoded file. Missing tables or keys yield nil.
func tomlLookup(file map[string]any, path string) any {
	keys := strings.Split(path, ".")
	table := file
	for _, key := range keys[:len(keys)-1] {
		next, ok := table[key].(map[string]any)
		if !ok {
			return nil
		}
		table = next
	}
	return table[keys[len(keys)-1]]
}

// assign stores a decoded TOML value into a field. Type mismatches are
// ignored rather than erroring so a sloppy config degrades to defaults.
func assign(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		items, ok := value.([]any)
		if !ok {
			return
		}
		strs := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				strs = append(strs, s)
			}
		}
		field.Set(reflect.ValueOf(strs))
	}
}

// assignString stores an environment value into a field, parsing it
// per the field's type. Unparseable values are ignored.
func assignString(field reflect.Value, raw string) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			field.SetInt(n)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	}
}

// LoadLoggingConfig reads only the [logging] table from the config
// file. Any key other than level and format names a module whose level
// is overridden, e.g. restore = "debug". A missing or unparseable file
// yields the defaults, never an error, so live reload can't take the
// deck's logging down.
func LoadLoggingConfig(path string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	var file struct {
		Logging map[string]string `toml:"logging"`
	}
	if toml.Unmarshal(data, &file) != nil {
		return cfg
	}
	for key, level := range file.Logging {
		switch key {
		case "level":
			cfg.Level = level
		case "format":
			cfg.Format = level
		default:
			cfg.Modules[key] = level
		}
	}
	return cfg
}
