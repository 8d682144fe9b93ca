// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rtldagent is a minimal stand-in for the dynamic-linker debug
// agent spec.md §1 names as an external collaborator and §4.3 consumes
// through loadobj_iter: rd_loadobj_iter in the original. It walks a
// live glibc process's link-map chain by following DT_DEBUG to
// r_debug to the struct link_map list, the same path gdb and rtld_db
// use, and yields one proc.LoadObject per node. It implements exactly
// proc.LoadObjectSource and nothing more — it is not part of the core,
// and a core image (no live linker to ask) never constructs one.
package rtldagent

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ryao/procsym/proc"
)

// memReader is the subset of proc.Target the agent needs: raw memory
// and NUL-terminated string reads. Kept narrow so callers outside
// procfstarget (e.g. a test double) can satisfy it trivially.
type memReader interface {
	ReadMem(addr proc.Address, p []byte) (int, error)
	ReadString(addr proc.Address, max int) (string, error)
}

// ErrNoDebug is returned when the DT_DEBUG word is still zero, meaning
// the dynamic linker has not yet initialized r_debug (very early in
// process startup) or the target is statically linked.
var ErrNoDebug = errors.New("rtldagent: DT_DEBUG not yet populated")

// Agent walks one process's link-map chain.
type Agent struct {
	target  memReader
	debug   proc.Address // address of the in-memory DT_DEBUG d_val word
	ptrSize int           // 4 (ELFCLASS32) or 8 (ELFCLASS64)
	order   binary.ByteOrder
}

// New builds an Agent. debugAddr is the address, in the target's
// address space, of the DT_DEBUG dynamic entry's d_val field — the
// word the dynamic linker overwrites at startup with the address of
// struct r_debug. The caller (Handle's wiring code) computes this from
// the executable Object's dynamic section plus its load bias, since
// locating DT_DEBUG itself is ELF Ingest's job, not the agent's.
func New(target memReader, debugAddr proc.Address, ptrSize int, order binary.ByteOrder) *Agent {
	return &Agent{target: target, debug: debugAddr, ptrSize: ptrSize, order: order}
}

// maxLinkMapNodes bounds the walk so a corrupted or concurrently
// mutating link map can never spin the iterator forever.
const maxLinkMapNodes = 100000

// LoadObjects implements proc.LoadObjectSource.
func (a *Agent) LoadObjects(fn func(proc.LoadObject) bool) error {
	rdebug, err := a.readWord(a.debug)
	if err != nil {
		return fmt.Errorf("rtldagent: reading DT_DEBUG: %w", err)
	}
	if rdebug == 0 {
		return ErrNoDebug
	}

	// struct r_debug { int32 version; <pad to ptrSize> link_map *r_map; ... }
	rmapOff := proc.Address(rdebug).Add(int64(a.ptrSize))
	rmap, err := a.readWord(rmapOff)
	if err != nil {
		return fmt.Errorf("rtldagent: reading r_debug.r_map: %w", err)
	}

	node := proc.Address(rmap)
	seen := 0
	for node != 0 && seen < maxLinkMapNodes {
		seen++

		laddr, err := a.readWord(node)
		if err != nil {
			return fmt.Errorf("rtldagent: reading l_addr: %w", err)
		}
		lname, err := a.readWord(node.Add(int64(a.ptrSize)))
		if err != nil {
			return fmt.Errorf("rtldagent: reading l_name: %w", err)
		}
		lnext, err := a.readWord(node.Add(int64(3 * a.ptrSize)))
		if err != nil {
			return fmt.Errorf("rtldagent: reading l_next: %w", err)
		}

		lo := proc.LoadObject{
			Base:      proc.Address(laddr),
			NameAddr:  proc.Address(lname),
			LinkMapID: proc.LmidBase,
		}
		if !fn(lo) {
			return nil
		}
		node = proc.Address(lnext)
	}
	return nil
}

// readWord reads one native-width word from the target at addr.
func (a *Agent) readWord(addr proc.Address) (uint64, error) {
	buf := make([]byte, a.ptrSize)
	if _, err := a.target.ReadMem(addr, buf); err != nil {
		return 0, err
	}
	if a.ptrSize == 4 {
		return uint64(a.order.Uint32(buf)), nil
	}
	return a.order.Uint64(buf), nil
}
