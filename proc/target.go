// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import "io"

// Target is the external-collaborator boundary named in §1 and §6: the
// handful of read primitives a live process or a core image must supply
// before proc can do anything. proc never attaches, stops, or writes to
// a target; it only reads through this interface.
//
// Implementations: procfstarget (a live Linux pid) and coretarget (a
// post-mortem ELF core image).
type Target interface {
	// ReadMem reads len(p) bytes of target memory starting at addr,
	// the same primitive the original calls read_mem. Short reads that
	// stop at an unmapped page return the bytes read so far along with
	// io.ErrUnexpectedEOF; a read that starts unmapped returns (0, err).
	ReadMem(addr Address, p []byte) (int, error)

	// ReadString reads a NUL-terminated string starting at addr, the
	// original's read_string. max bounds the number of bytes examined.
	ReadString(addr Address, max int) (string, error)

	// Mappings returns a fresh snapshot of the target's address-space
	// mappings, sorted ascending by Base and with no overlaps. The
	// mapper diffs this against its previous snapshot on every Reset.
	Mappings() ([]RawMapping, error)

	// ExePath returns the path to the target's own executable (procfs
	// "exe" symlink, or the executable path recorded in a core's
	// NT_FILE note), used to resolve the a.out object.
	ExePath() (string, error)

	// OpenObject opens the backing file for mapname, the way
	// /proc/<pid>/object/<name> or a core-relative path resolves a
	// mapped file to bytes. Returned as a ReadAtCloser so callers can
	// seek without buffering the whole file.
	OpenObject(mapname string) (ReadAtCloser, error)

	// Auxv returns the target's raw auxiliary vector as a flat
	// (tag, value) uint64 pair stream, the original's Preadauxvec.
	Auxv() ([]AuxEntry, error)
}

// ReadAtCloser is the minimal handle proc needs on a backing object
// file: random access plus a Close, satisfied by *os.File (what both
// procfstarget and coretarget return).
type ReadAtCloser interface {
	io.ReaderAt
	io.Closer
}

// AuxEntry is one (tag, value) pair of the target's auxiliary vector.
type AuxEntry struct {
	Tag   int64
	Value uint64
}

// Auxv well-known tags this package reads (the subset spec.md §4.7
// names: AT_BASE and AT_ENTRY).
const (
	AtNull  = 0
	AtEntry = 9
	AtBase  = 7
	AtPagesz = 6
)

// LoadObjectSource is the dynamic-linker debug agent boundary consumed
// by the Link-Map Reconciler (§4.3): an external collaborator that can
// walk a live target's link-map chain and report one LoadObject per
// call. rtldagent implements this against DT_DEBUG/r_debug; a core
// image has no live linker to ask, so no link-map reconciliation runs
// there and Objects are bound from the mappings alone.
type LoadObjectSource interface {
	// LoadObjects invokes fn once per currently-mapped load object, in
	// link-map order, stopping early if fn returns false. It mirrors
	// the original's loadobj_iter callback shape.
	LoadObjects(fn func(LoadObject) bool) error
}
