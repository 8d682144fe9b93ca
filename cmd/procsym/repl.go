// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/ryao/procsym/proc"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive inspection shell",
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
			return runRepl(h)
		},
	}
}

func runRepl(h *proc.Handle) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "procsym> ",
		HistoryFile:     "/tmp/.procsym_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		err = dispatchReplLine(h, line)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			fmt.Fprintln(rl.Stderr(), err)
		}
	}
}

// dispatchReplLine runs one REPL command against an already-open
// Handle; it mirrors the non-interactive subcommands but skips the
// per-invocation target construction those pay.
func dispatchReplLine(h *proc.Handle, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "quit", "exit":
		return io.EOF
	case "maps":
		h.MappingIter(func(m *proc.Mapping) bool {
			name := m.Mapname
			if name == "" {
				name = "[anon]"
			}
			fmt.Printf("%s-%s %s %s\n", m.Min(), m.Max(), m.Flags, name)
			return true
		})
		return nil
	case "objects":
		h.ObjectIter(proc.OrderNatural, func(o *proc.Object) bool {
			fmt.Println(o.Mapname)
			return true
		})
		return nil
	case "addr":
		if len(fields) != 2 {
			return fmt.Errorf("usage: addr <hex-address>")
		}
		addr, err := parseAddr(fields[1])
		if err != nil {
			return err
		}
		info, resolved, err := h.XLookupByAddr(addr)
		if err != nil {
			return err
		}
		fmt.Printf("%s = %s+%#x (%s, %s)\n", addr, info.Name, addr.Sub(resolved), info.Object, info.Table)
		return nil
	case "name":
		if len(fields) != 3 {
			return fmt.Errorf("usage: name <object> <symbol>")
		}
		addr, err := h.LookupByName(fields[1], fields[2])
		if err != nil {
			return err
		}
		fmt.Println(addr)
		return nil
	case "auxv":
		for _, e := range h.GetAuxVec() {
			fmt.Printf("%d = %#x\n", e.Tag, e.Value)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}
