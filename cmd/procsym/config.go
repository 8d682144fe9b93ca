// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional on-disk configuration for procsym: a default
// target and search path, overridable by flags. Shaped after the
// read-unmarshal-defaults-validate config loader the retrieval pack
// uses for its own agent config.
type Config struct {
	Pid      int      `yaml:"pid"`
	Core     string   `yaml:"core"`
	BaseDirs []string `yaml:"base_dirs"`
	NoSort   bool     `yaml:"no_sort"`
}

// LoadConfig reads and validates path. A missing file is not an error:
// it yields a zero Config so command-line flags remain fully
// sufficient on their own.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BaseDirs == nil {
		c.BaseDirs = []string{"."}
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Pid != 0 && c.Core != "" {
		errs = append(errs, errors.New("config: pid and core are mutually exclusive"))
	}
	if c.Pid < 0 {
		errs = append(errs, fmt.Errorf("config: pid must be positive, got %d", c.Pid))
	}
	return errors.Join(errs...)
}
