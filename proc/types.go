// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import "fmt"

// Address is a virtual address in the target's address space.
type Address uint64

// Add returns a+Address(n).
func (a Address) Add(n int64) Address { return a + Address(n) }

// Sub returns a-b as a signed byte count.
func (a Address) Sub(b Address) int64 { return int64(a) - int64(b) }

func (a Address) String() string { return fmt.Sprintf("0x%x", uint64(a)) }

// Perm is the set of access permissions and classification bits for a
// Mapping. MapRead/MapWrite/MapExec mirror the R/W/X bits reported by the
// collaborator; MapBreak and MapStack mark the heap-break and stack
// mappings respectively and are excluded from the Mapping identity
// comparison used by refresh (spec §3, equality tuple).
type Perm uint8

const (
	MapRead Perm = 1 << iota
	MapWrite
	MapExec
	MapBreak
	MapStack
)

// maskVolatile clears the bits that are allowed to change across a
// refresh without the mapping being considered a different mapping.
func (p Perm) maskVolatile() Perm { return p &^ (MapBreak | MapStack) }

func (p Perm) String() string {
	var s [5]byte
	b := s[:0]
	if p&MapRead != 0 {
		b = append(b, 'r')
	} else {
		b = append(b, '-')
	}
	if p&MapWrite != 0 {
		b = append(b, 'w')
	} else {
		b = append(b, '-')
	}
	if p&MapExec != 0 {
		b = append(b, 'x')
	} else {
		b = append(b, '-')
	}
	if p&MapBreak != 0 {
		b = append(b, 'b')
	}
	if p&MapStack != 0 {
		b = append(b, 's')
	}
	return string(b)
}

// RawMapping is one entry of the sorted mapping snapshot a Target
// produces. It carries no file binding; the mapper associates it with an
// Object lazily.
type RawMapping struct {
	Base     Address
	Size     uint64
	Offset   uint64
	Flags    Perm
	PageSize uint64
	Shmid    int64
	// Mapname is the short identifier the collaborator uses to name the
	// backing file: a full path, a basename, or "" for an anonymous
	// mapping. Bounded in length by the collaborator (PRMAPSZ in the
	// original); proc does not itself bound it further.
	Mapname string
}

func (r RawMapping) end() Address { return r.Base.Add(int64(r.Size)) }

// sameIdentity reports whether r and o refer to the same mapping across a
// refresh: equal base, size, offset, flags (modulo MapBreak/MapStack),
// page size, shmid, and mapname (spec §3 invariant on Object lifecycles).
func (r RawMapping) sameIdentity(o RawMapping) bool {
	return r.Base == o.Base &&
		r.Size == o.Size &&
		r.Offset == o.Offset &&
		r.Flags.maskVolatile() == o.Flags.maskVolatile() &&
		r.PageSize == o.PageSize &&
		r.Shmid == o.Shmid &&
		r.Mapname == o.Mapname
}

// Mapping is one contiguous region of the target's address space.
type Mapping struct {
	RawMapping
	obj *Object // nil until an Object is bound
}

// Min returns the lowest address of the mapping.
func (m *Mapping) Min() Address { return m.Base }

// Max returns the address just past the end of the mapping.
func (m *Mapping) Max() Address { return m.end() }

// Contains reports whether addr falls within the mapping, using a single
// unsigned subtraction so that wraparound can never make an out-of-range
// address look contained (spec §3 invariant 1).
func (m *Mapping) Contains(addr Address) bool {
	return uint64(addr-m.Base) < m.Size
}

// Object returns the backing Object, or nil if the mapping has none.
func (m *Mapping) Object() *Object { return m.obj }

// LoadObject mirrors the linker-agent's record for one load object: the
// in-process shape of rd_loadobj_t.
type LoadObject struct {
	Base       Address
	End        Address
	DataBase   Address
	PLTBase    Address
	PLTSize    uint64
	LinkMapID  Lmid
	NameAddr   Address
}

// Lmid identifies a linker namespace.
type Lmid int64

// Reserved link-map ids (spec §6).
const (
	LmidEvery Lmid = -1
	LmidBase  Lmid = 0
)

// Reserved sentinel object names (spec §6). These are compared by
// contents with ==, so any equal string matches them (the original
// compares PR_OBJ_EXEC/PR_OBJ_LDSO/PR_OBJ_EVERY pointers instead); Go
// callers should use these constants rather than retyping the literal.
const (
	ObjExec  = "a.out"
	ObjLdso  = "ld.so.1"
	ObjEvery = ""
)

// SymTable identifies which of an object's two symbol tables a lookup
// result came from.
type SymTable int

const (
	SymtabSym SymTable = iota
	SymtabDyn
)

func (t SymTable) String() string {
	if t == SymtabDyn {
		return "dynsym"
	}
	return "symtab"
}

// SymInfo is the ancillary information returned alongside a symbol by the
// X-prefixed lookups (prsyminfo_t in the original).
type SymInfo struct {
	Name   string
	Object string
	Lmid   Lmid
	Table  SymTable
	ID     int // stable index within the chosen symbol table
}
