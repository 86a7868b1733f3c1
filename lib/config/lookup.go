// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Lookup returns the value of key in section, or fallback when either
// is absent. Names match the YAML keys case-insensitively, so
// Lookup("Clients", "limit", 10) reads clients.limit. Values have the
// types YAML decoding produces: int, bool, string or []any.
func (c *Config) Lookup(section, key string, fallback any) any {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fallback
	}
	var sections map[string]any
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return fallback
	}

	for name, body := range sections {
		if !strings.EqualFold(name, section) {
			continue
		}
		fields, ok := body.(map[string]any)
		if !ok {
			return fallback
		}
		for field, value := range fields {
			if strings.EqualFold(field, key) && value != nil {
				return value
			}
		}
	}
	return fallback
}
