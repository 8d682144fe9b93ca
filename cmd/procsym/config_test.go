// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileYieldsZeroConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Pid != 0 || cfg.Core != "" {
		t.Fatalf("expected zero config, got %+v", cfg)
	}
}

func TestLoadConfigParsesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procsym.yaml")
	if err := os.WriteFile(path, []byte("pid: 1234\nno_sort: true\n"), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Pid != 1234 || !cfg.NoSort {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.BaseDirs) != 1 || cfg.BaseDirs[0] != "." {
		t.Fatalf("applyDefaults did not set BaseDirs: %+v", cfg.BaseDirs)
	}
}

func TestLoadConfigRejectsPidAndCoreTogether(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procsym.yaml")
	if err := os.WriteFile(path, []byte("pid: 1234\ncore: /tmp/core.1234\n"), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected an error for mutually exclusive pid/core")
	}
}
