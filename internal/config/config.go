// Package config loads the charge-lnd configuration file: node connection
// settings plus the ordered policy sections the resolver evaluates.
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dmp1ce/charge-lnd/internal/policy"
)

type Config struct {
	LND      LNDConfig
	History  HistoryConfig
	Server   ServerConfig
	Policies []policy.Definition
	Default  *policy.Section
}

type LNDConfig struct {
	GRPCHost     string `toml:"grpc_host"`
	TLSCertPath  string `toml:"tls_cert_path"`
	MacaroonPath string `toml:"macaroon_path"`
}

type HistoryConfig struct {
	DSN string `toml:"dsn"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
}

type rawFile struct {
	LND      LNDConfig        `toml:"lnd"`
	History  HistoryConfig    `toml:"history"`
	Server   ServerConfig     `toml:"server"`
	Policies []map[string]any `toml:"policy"`
	Default  map[string]any   `toml:"default"`
}

const defaultGRPCHost = "localhost:10009"

// Load reads the TOML config at path. Policy tables keep their declaration
// order; nested tables flatten into dotted option keys, so
//
//	[[policy]]
//	name = "big"
//	strategy = "static"
//	[policy.chan]
//	min_capacity = 500000
//
// yields a section with "strategy" and "chan.min_capacity".
func Load(path string) (*Config, error) {
	var raw rawFile
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return build(&raw)
}

func build(raw *rawFile) (*Config, error) {
	cfg := &Config{
		LND:     raw.LND,
		History: raw.History,
		Server:  raw.Server,
	}
	if cfg.LND.GRPCHost == "" {
		cfg.LND.GRPCHost = defaultGRPCHost
	}

	seen := make(map[string]bool)
	for i, table := range raw.Policies {
		name, _ := table["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("policy #%d: missing name", i+1)
		}
		if name == policy.DefaultPolicyName {
			return nil, fmt.Errorf("policy #%d: %q is reserved", i+1, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate policy %q", name)
		}
		seen[name] = true

		sec, err := flattenSection(table)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", name, err)
		}
		cfg.Policies = append(cfg.Policies, policy.Definition{Name: name, Section: sec})
	}

	if len(raw.Default) > 0 {
		sec, err := flattenSection(raw.Default)
		if err != nil {
			return nil, fmt.Errorf("default policy: %w", err)
		}
		cfg.Default = sec
	}
	return cfg, nil
}

// flattenSection converts one decoded policy table into a raw section,
// turning nested tables into dotted keys and scalars into their text form.
func flattenSection(table map[string]any) (*policy.Section, error) {
	sec := policy.NewSection()
	if err := flattenInto(sec, "", table); err != nil {
		return nil, err
	}
	return sec, nil
}

func flattenInto(sec *policy.Section, prefix string, table map[string]any) error {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if prefix == "" && k == "name" {
			continue
		}
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		switch v := table[k].(type) {
		case map[string]any:
			if prefix != "" {
				return fmt.Errorf("option %q: tables nest at most one level", full)
			}
			if err := flattenInto(sec, k, v); err != nil {
				return err
			}
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				text, err := scalarText(full, item)
				if err != nil {
					return err
				}
				items = append(items, text)
			}
			sec.Set(full, items...)
		default:
			text, err := scalarText(full, v)
			if err != nil {
				return err
			}
			sec.Set(full, text)
		}
	}
	return nil
}

func scalarText(key string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("option %q: unsupported value type %T", key, value)
	}
}
