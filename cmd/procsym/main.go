// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command procsym is an inspection CLI over the proc symbol resolution
// core: point it at a live pid or a core file and ask it about
// mappings, objects, and symbols, the same way the teacher's viewcore
// wraps an in-process Target.
package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ryao/procsym/coretarget"
	"github.com/ryao/procsym/proc"
	"github.com/ryao/procsym/procfstarget"
	"github.com/ryao/procsym/rtldagent"
)

var (
	flagPid      int
	flagCore     string
	flagBaseDirs []string
	flagConfig   string
	flagNoSort   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "procsym",
		Short: "Inspect process and core-dump symbol tables",
	}
	root.PersistentFlags().IntVar(&flagPid, "pid", 0, "attach to a live process by pid")
	root.PersistentFlags().StringVar(&flagCore, "core", "", "inspect a core dump file instead of a live pid")
	root.PersistentFlags().StringSliceVar(&flagBaseDirs, "base", nil, "directories to search for a core's backing object files")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "optional YAML config file")
	root.PersistentFlags().BoolVar(&flagNoSort, "no-sort", false, "disable sorted symbol lookup, use linear search")

	root.AddCommand(newMapsCmd())
	root.AddCommand(newObjectsCmd())
	root.AddCommand(newAddrCmd())
	root.AddCommand(newNameCmd())
	root.AddCommand(newAuxvCmd())
	root.AddCommand(newReplCmd())
	return root
}

// resolvedConfig merges the optional YAML config file with flags,
// flags taking precedence whenever both set the same field.
func resolvedConfig() (*Config, error) {
	cfg, err := LoadConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagPid != 0 {
		cfg.Pid = flagPid
	}
	if flagCore != "" {
		cfg.Core = flagCore
	}
	if len(flagBaseDirs) > 0 {
		cfg.BaseDirs = flagBaseDirs
	}
	if flagNoSort {
		cfg.NoSort = true
	}
	if v, ok := os.LookupEnv("PROCSYM_NO_SORT"); ok && v != "" && v != "0" {
		cfg.NoSort = true
	}
	cfg.applyDefaults()
	return cfg, nil
}

// buildHandle constructs a Handle for the resolved target. The
// returned closer, if non-nil, must be closed by the caller once done.
func buildHandle(cfg *Config) (*proc.Handle, func() error, error) {
	if cfg.Core != "" {
		t, err := coretarget.Open(cfg.Core, cfg.BaseDirs...)
		if err != nil {
			return nil, nil, err
		}
		h, err := proc.New(t, nil, log.Default())
		if err != nil {
			return nil, nil, err
		}
		h.DisableSort = cfg.NoSort
		return h, func() error { return nil }, nil
	}
	if cfg.Pid == 0 {
		return nil, nil, fmt.Errorf("one of --pid or --core is required")
	}

	t, err := procfstarget.Open(cfg.Pid)
	if err != nil {
		return nil, nil, err
	}
	h, err := proc.New(t, nil, log.Default())
	if err != nil {
		t.Close()
		return nil, nil, err
	}
	h.DisableSort = cfg.NoSort

	if addr, ptrSize, derr := h.DebugWordAddr(); derr == nil {
		agent := rtldagent.New(t, addr, ptrSize, binary.LittleEndian)
		h.SetLoadObjectSource(agent)
		if err := h.Reset(); err != nil {
			log.Printf("procsym: reconciling link map: %v", err)
		}
	}

	return h, t.Close, nil
}

func newMapsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "maps",
		Short: "List current address-space mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolvedConfig()
			if err != nil {
				return err
			}
			h, closer, err := buildHandle(cfg)
			if err != nil {
				return err
			}
			defer closer()
			h.MappingIter(func(m *proc.Mapping) bool {
				name := m.Mapname
				if name == "" {
					name = "[anon]"
				}
				fmt.Printf("%s-%s %s %s\n", m.Min(), m.Max(), m.Flags, name)
				return true
			})
			return nil
		},
	}
}

func newObjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "objects",
		Short: "List known objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolvedConfig()
			if err != nil {
				return err
			}
			h, closer, err := buildHandle(cfg)
			if err != nil {
				return err
			}
			defer closer()
			h.ObjectIter(proc.OrderNatural, func(o *proc.Object) bool {
				fmt.Println(o.Mapname)
				return true
			})
			return nil
		},
	}
}

func newAddrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "addr <hex-address>",
		Short: "Resolve an address to a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolvedConfig()
			if err != nil {
				return err
			}
			h, closer, err := buildHandle(cfg)
			if err != nil {
				return err
			}
			defer closer()
			addr, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			info, resolved, err := h.XLookupByAddr(addr)
			if err != nil {
				return err
			}
			fmt.Printf("%s = %s+%#x (%s, %s)\n", addr, info.Name, addr.Sub(resolved), info.Object, info.Table)
			return nil
		},
	}
}

func newNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "name <object> <symbol>",
		Short: "Resolve a symbol name to an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolvedConfig()
			if err != nil {
				return err
			}
			h, closer, err := buildHandle(cfg)
			if err != nil {
				return err
			}
			defer closer()
			addr, err := h.LookupByName(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(addr)
			return nil
		},
	}
}

func newAuxvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auxv",
		Short: "Dump the target's auxiliary vector",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolvedConfig()
			if err != nil {
				return err
			}
			h, closer, err := buildHandle(cfg)
			if err != nil {
				return err
			}
			defer closer()
			for _, e := range h.GetAuxVec() {
				fmt.Printf("%d = %#x\n", e.Tag, e.Value)
			}
			return nil
		},
	}
}

func parseAddr(s string) (proc.Address, error) {
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return proc.Address(v), nil
}
