// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package procfstarget implements proc.Target against a live Linux
// process, using exactly the /proc files the original's Linux port of
// libproc reads: /proc/<pid>/mem, /proc/<pid>/maps, /proc/<pid>/auxv,
// /proc/<pid>/exe, and /proc/<pid>/object/<name>. It is handed an
// already-running pid; attaching to or stopping the process is process
// ACQUISITION's job and out of scope here (spec.md §1).
package procfstarget

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ryao/procsym/proc"
)

// Target is a live Linux process reachable through procfs.
type Target struct {
	pid      int
	mem      *os.File
	pagesize uint64
}

// Open opens /proc/<pid>/mem for random-access reads and returns a
// ready-to-use Target. The process must already exist; Open performs
// no ptrace attach.
func Open(pid int) (*Target, error) {
	f, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("procfstarget: opening mem: %w", err)
	}
	return &Target{
		pid:      pid,
		mem:      f,
		pagesize: uint64(unix.Getpagesize()), // §9 resolved Open Question: query, don't hardcode 4096
	}, nil
}

// Close releases the open /proc/<pid>/mem handle.
func (t *Target) Close() error { return t.mem.Close() }

// ReadMem implements proc.Target.
func (t *Target) ReadMem(addr proc.Address, p []byte) (int, error) {
	n, err := t.mem.ReadAt(p, int64(addr))
	if err != nil && err != io.EOF {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

// ReadString implements proc.Target.
func (t *Target) ReadString(addr proc.Address, max int) (string, error) {
	buf := make([]byte, 0, 64)
	chunk := make([]byte, 64)
	for len(buf) < max {
		want := len(chunk)
		if remain := max - len(buf); remain < want {
			want = remain
		}
		n, err := t.mem.ReadAt(chunk[:want], int64(addr)+int64(len(buf)))
		if n == 0 && err != nil {
			if len(buf) > 0 {
				break
			}
			return "", fmt.Errorf("procfstarget: reading string at %s: %w", addr, err)
		}
		if i := indexByte(chunk[:n], 0); i >= 0 {
			buf = append(buf, chunk[:i]...)
			return string(buf), nil
		}
		buf = append(buf, chunk[:n]...)
		if err != nil {
			break
		}
	}
	return string(buf), nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// Mappings implements proc.Target by parsing /proc/<pid>/maps. The
// kernel always emits this file sorted ascending by start address with
// no overlaps, which is the invariant mapper.refresh relies on.
func (t *Target) Mappings() ([]proc.RawMapping, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", t.pid))
	if err != nil {
		return nil, fmt.Errorf("procfstarget: opening maps: %w", err)
	}
	defer f.Close()

	var out []proc.RawMapping
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m, ok := parseMapsLine(sc.Text(), t.pagesize)
		if ok {
			out = append(out, m)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("procfstarget: reading maps: %w", err)
	}
	return out, nil
}

// parseMapsLine parses one /proc/pid/maps line:
//
//	address           perms offset  dev   inode       pathname
//	00400000-00452000 r-xp 00000000 08:02 173521      /usr/bin/dbus-daemon
func parseMapsLine(line string, pagesize uint64) (proc.RawMapping, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return proc.RawMapping{}, false
	}
	addrs := strings.SplitN(fields[0], "-", 2)
	if len(addrs) != 2 {
		return proc.RawMapping{}, false
	}
	start, err1 := strconv.ParseUint(addrs[0], 16, 64)
	end, err2 := strconv.ParseUint(addrs[1], 16, 64)
	if err1 != nil || err2 != nil || end < start {
		return proc.RawMapping{}, false
	}
	offset, _ := strconv.ParseUint(fields[2], 16, 64)

	var flags proc.Perm
	perms := fields[1]
	if strings.IndexByte(perms, 'r') >= 0 {
		flags |= proc.MapRead
	}
	if strings.IndexByte(perms, 'w') >= 0 {
		flags |= proc.MapWrite
	}
	if strings.IndexByte(perms, 'x') >= 0 {
		flags |= proc.MapExec
	}

	name := ""
	if len(fields) >= 6 {
		name = strings.Join(fields[5:], " ")
	}
	switch name {
	case "[heap]":
		flags |= proc.MapBreak
		name = ""
	case "[stack]":
		flags |= proc.MapStack
		name = ""
	default:
		if strings.HasPrefix(name, "[") {
			name = ""
		}
	}

	return proc.RawMapping{
		Base:     proc.Address(start),
		Size:     end - start,
		Offset:   offset,
		Flags:    flags,
		PageSize: pagesize,
		Mapname:  name,
	}, true
}

// ExePath implements proc.Target.
func (t *Target) ExePath() (string, error) {
	p, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", t.pid))
	if err != nil {
		return "", fmt.Errorf("procfstarget: reading exe link: %w", err)
	}
	return p, nil
}

// OpenObject implements proc.Target. It prefers
// /proc/<pid>/object/<basename>, the Solaris-style per-object procfs
// entry the original reads; when that doesn't exist (the Linux port
// carries no such directory) it falls back to opening mapname directly
// as an absolute path, which is what /proc/<pid>/maps actually reports
// on Linux.
func (t *Target) OpenObject(mapname string) (proc.ReadAtCloser, error) {
	base := mapname
	if i := strings.LastIndexByte(mapname, '/'); i >= 0 {
		base = mapname[i+1:]
	}
	if f, err := os.Open(fmt.Sprintf("/proc/%d/object/%s", t.pid, base)); err == nil {
		return f, nil
	}
	f, err := os.Open(mapname)
	if err != nil {
		return nil, fmt.Errorf("procfstarget: opening object %s: %w", mapname, err)
	}
	return f, nil
}

// Auxv implements proc.Target by reading /proc/<pid>/auxv, a flat
// array of native-word (tag, value) pairs terminated by an AT_NULL
// entry.
func (t *Target) Auxv() ([]proc.AuxEntry, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/auxv", t.pid))
	if err != nil {
		return nil, fmt.Errorf("procfstarget: reading auxv: %w", err)
	}
	const wordSize = 8 // amd64/arm64; procfstarget targets 64-bit Linux
	var out []proc.AuxEntry
	for i := 0; i+2*wordSize <= len(data); i += 2 * wordSize {
		tag := int64(binary.LittleEndian.Uint64(data[i : i+wordSize]))
		val := binary.LittleEndian.Uint64(data[i+wordSize : i+2*wordSize])
		if tag == proc.AtNull {
			break
		}
		out = append(out, proc.AuxEntry{Tag: tag, Value: val})
	}
	return out, nil
}
