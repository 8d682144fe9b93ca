// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package coretarget implements proc.Target against a post-mortem ELF
// core image: the "core image" half of spec.md §1's "live process or
// core image" framing. It reads PT_LOAD segments in place of
// /proc/<pid>/mem and the NT_FILE/NT_AUXV notes in place of
// /proc/<pid>/maps and /proc/<pid>/auxv. There is no live process to
// attach to and no dynamic linker to consult, so a coretarget.Target
// never satisfies proc.LoadObjectSource.
package coretarget

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ryao/procsym/proc"
)

// Linux core notes debug/elf does not name as constants.
const (
	ntFile = elf.NType(0x46494c45) // "FILE" packed, matches the original's core reader
	ntAuxv = elf.NType(0x6)
)

type segment struct {
	base proc.Address
	size uint64
	data []byte // Filesz bytes; Memsz-Filesz tail reads as zero
	perm proc.Perm
}

func (s segment) end() proc.Address { return s.base.Add(int64(s.size)) }

type fileNote struct {
	start, end proc.Address
	pageOffset uint64
	name       string
}

// Target is a single open core image.
type Target struct {
	segs     []segment
	files    []fileNote
	auxv     []proc.AuxEntry
	baseDirs []string // directories searched for a fileNote's backing file
}

// Open reads core, a core dump file, and baseDirs, directories to search
// for the executable and shared objects the core's NT_FILE note names
// (since the core's own recorded paths may not exist on the machine
// doing the inspection).
func Open(core string, baseDirs ...string) (*Target, error) {
	f, err := os.Open(core)
	if err != nil {
		return nil, fmt.Errorf("coretarget: opening core: %w", err)
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		return nil, fmt.Errorf("coretarget: parsing core: %w", err)
	}
	if ef.Type != elf.ET_CORE {
		return nil, fmt.Errorf("coretarget: %s is not a core file (type %v)", core, ef.Type)
	}

	t := &Target{baseDirs: baseDirs}
	for _, p := range ef.Progs {
		switch p.Type {
		case elf.PT_LOAD:
			if err := t.readLoad(p); err != nil {
				return nil, err
			}
		case elf.PT_NOTE:
			if err := t.readNotes(p); err != nil {
				return nil, err
			}
		}
	}
	sort.Slice(t.segs, func(i, j int) bool { return t.segs[i].base < t.segs[j].base })
	return t, nil
}

func (t *Target) readLoad(p *elf.Prog) error {
	data := make([]byte, p.Filesz)
	if _, err := p.ReadAt(data, 0); err != nil {
		return fmt.Errorf("coretarget: reading PT_LOAD at %#x: %w", p.Vaddr, err)
	}
	perm := proc.Perm(0)
	if p.Flags&elf.PF_R != 0 {
		perm |= proc.MapRead
	}
	if p.Flags&elf.PF_W != 0 {
		perm |= proc.MapWrite
	}
	if p.Flags&elf.PF_X != 0 {
		perm |= proc.MapExec
	}
	t.segs = append(t.segs, segment{
		base: proc.Address(p.Vaddr),
		size: p.Memsz,
		data: data,
		perm: perm,
	})
	return nil
}

func (t *Target) readNotes(p *elf.Prog) error {
	data := make([]byte, p.Filesz)
	if _, err := p.ReadAt(data, 0); err != nil {
		return fmt.Errorf("coretarget: reading PT_NOTE: %w", err)
	}
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		var namesz, descsz, typ uint32
		if err := binary.Read(r, binary.LittleEndian, &namesz); err != nil {
			return nil
		}
		if err := binary.Read(r, binary.LittleEndian, &descsz); err != nil {
			return nil
		}
		if err := binary.Read(r, binary.LittleEndian, &typ); err != nil {
			return nil
		}
		name := make([]byte, align4(namesz))
		if _, err := io.ReadFull(r, name); err != nil {
			return nil
		}
		desc := make([]byte, align4(descsz))
		if _, err := io.ReadFull(r, desc); err != nil {
			return nil
		}
		desc = desc[:descsz]

		switch elf.NType(typ) {
		case ntFile:
			t.parseNTFile(desc)
		case ntAuxv:
			t.parseNTAuxv(desc)
		}
	}
	return nil
}

func align4(n uint32) uint32 { return (n + 3) &^ 3 }

// parseNTFile decodes the NT_FILE note: a count and page size, followed
// by count (start, end, pageOffset) triples, followed by count
// NUL-terminated path names in the same order.
func (t *Target) parseNTFile(desc []byte) {
	r := bytes.NewReader(desc)
	var count, pagesize uint64
	if binary.Read(r, binary.LittleEndian, &count) != nil {
		return
	}
	if binary.Read(r, binary.LittleEndian, &pagesize) != nil {
		return
	}
	type triple struct{ start, end, off uint64 }
	triples := make([]triple, count)
	for i := range triples {
		if binary.Read(r, binary.LittleEndian, &triples[i]) != nil {
			return
		}
	}
	rest, _ := io.ReadAll(r)
	names := bytes.Split(rest, []byte{0})
	for i, tr := range triples {
		name := ""
		if i < len(names) {
			name = string(names[i])
		}
		t.files = append(t.files, fileNote{
			start:      proc.Address(tr.start),
			end:        proc.Address(tr.end),
			pageOffset: tr.off * pagesize,
			name:       name,
		})
	}
}

func (t *Target) parseNTAuxv(desc []byte) {
	r := bytes.NewReader(desc)
	for r.Len() >= 16 {
		var tag, val uint64
		if binary.Read(r, binary.LittleEndian, &tag) != nil {
			return
		}
		if binary.Read(r, binary.LittleEndian, &val) != nil {
			return
		}
		if int64(tag) == proc.AtNull {
			return
		}
		t.auxv = append(t.auxv, proc.AuxEntry{Tag: int64(tag), Value: val})
	}
}

// ReadMem implements proc.Target by copying out of whichever PT_LOAD
// segment covers addr; the Memsz-Filesz tail of a segment (bss) reads
// as zero, matching a real process's zero-fill-on-demand pages.
func (t *Target) ReadMem(addr proc.Address, p []byte) (int, error) {
	i := sort.Search(len(t.segs), func(i int) bool { return t.segs[i].end() > addr })
	if i == len(t.segs) || addr < t.segs[i].base {
		return 0, fmt.Errorf("coretarget: %s: %w", addr, errNoSegment)
	}
	s := t.segs[i]
	n := 0
	for n < len(p) {
		off := uint64(addr) + uint64(n) - uint64(s.base)
		if off >= s.size {
			break
		}
		if off < uint64(len(s.data)) {
			p[n] = s.data[off]
		} else {
			p[n] = 0
		}
		n++
	}
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

// ReadString implements proc.Target.
func (t *Target) ReadString(addr proc.Address, max int) (string, error) {
	buf := make([]byte, max)
	n, err := t.ReadMem(addr, buf)
	if n == 0 && err != nil {
		return "", err
	}
	if i := bytes.IndexByte(buf[:n], 0); i >= 0 {
		return string(buf[:i]), nil
	}
	return string(buf[:n]), nil
}

// Mappings implements proc.Target, synthesizing one RawMapping per
// PT_LOAD segment and attaching the name of the first NT_FILE entry (if
// any) whose range contains the segment's base, the core-image
// equivalent of a live /proc/<pid>/maps line.
func (t *Target) Mappings() ([]proc.RawMapping, error) {
	out := make([]proc.RawMapping, 0, len(t.segs))
	for _, s := range t.segs {
		name := ""
		for _, fn := range t.files {
			if s.base >= fn.start && s.base < fn.end {
				name = fn.name
				break
			}
		}
		out = append(out, proc.RawMapping{
			Base:    s.base,
			Size:    s.size,
			Flags:   s.perm,
			Mapname: name,
		})
	}
	return out, nil
}

// ExePath implements proc.Target by returning the first NT_FILE entry,
// which for a normal core is the executable mmap'd at the process's
// own image.
func (t *Target) ExePath() (string, error) {
	if len(t.files) == 0 {
		return "", fmt.Errorf("coretarget: %w", errNoExeFile)
	}
	return t.files[0].name, nil
}

// OpenObject implements proc.Target by searching baseDirs for the
// recorded NT_FILE path's basename, since the core's own absolute path
// rarely exists on the inspecting machine.
func (t *Target) OpenObject(mapname string) (proc.ReadAtCloser, error) {
	base := filepath.Base(mapname)
	for _, dir := range t.baseDirs {
		if f, err := os.Open(filepath.Join(dir, base)); err == nil {
			return f, nil
		}
	}
	f, err := os.Open(mapname)
	if err != nil {
		return nil, fmt.Errorf("coretarget: opening object %s: %w", mapname, err)
	}
	return f, nil
}

// Auxv implements proc.Target.
func (t *Target) Auxv() ([]proc.AuxEntry, error) { return t.auxv, nil }

var (
	errNoSegment = errors.New("address not covered by any PT_LOAD segment")
	errNoExeFile = errors.New("core carries no NT_FILE entries")
)
