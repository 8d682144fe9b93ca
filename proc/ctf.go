// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import "debug/elf"

// CTFInfo locates an object's CTF (Compact Type Format) data without
// interpreting it. Parsing CTF type graphs is an explicit Non-goal
// (spec.md §1): these operations exist only to hand a caller the
// section bytes of whichever object they name, the same boundary the
// original draws between Pbuild_file_symtab locating .SUNW_ctf and a
// separate, unrelated library actually parsing it.
type CTFInfo struct {
	Object *Object
	Offset int64
	Size   int64
}

// ctfLocate finds the .SUNW_ctf (or generic .ctf) section of the
// object's ELF image, populating o.ctfOff/o.ctfSize the first time it
// is asked for, mirroring the original's lazy CTF-section cache.
func ctfLocate(o *Object) (CTFInfo, bool) {
	if o.hasCTF {
		return CTFInfo{Object: o, Offset: o.ctfOff, Size: o.ctfSize}, true
	}
	if o.ef == nil {
		return CTFInfo{}, false
	}
	for _, name := range []string{".SUNW_ctf", ".ctf"} {
		s := o.ef.Section(name)
		if s == nil || !linksToSymtab(o.ef, s) {
			continue
		}
		o.ctfOff = int64(s.Offset)
		o.ctfSize = int64(s.Size)
		o.hasCTF = true
		return CTFInfo{Object: o, Offset: o.ctfOff, Size: o.ctfSize}, true
	}
	return CTFInfo{}, false
}

// linksToSymtab reports whether s's sh_link points at a real symbol
// section, the original's check that a candidate .SUNW_ctf section
// actually belongs to this object's symbol table rather than some
// unrelated same-named section left over from a stripped build.
func linksToSymtab(ef *elf.File, s *elf.Section) bool {
	idx := int(s.Link)
	if idx <= 0 || idx >= len(ef.Sections) {
		return false
	}
	typ := ef.Sections[idx].Type
	return typ == elf.SHT_SYMTAB || typ == elf.SHT_DYNSYM
}

// AddrToCTF locates the CTF data for the object mapped at addr.
func (h *Handle) AddrToCTF(addr Address) (CTFInfo, error) {
	m := h.mapper.at(addr)
	if m == nil {
		return CTFInfo{}, ErrNoMapping
	}
	o := h.objectFor(m)
	if o == nil {
		return CTFInfo{}, ErrNoObject
	}
	info, ok := ctfLocate(o)
	if !ok {
		return CTFInfo{}, ErrNoCTF
	}
	return info, nil
}

// NameToCTF locates the CTF data for the named object.
func (h *Handle) NameToCTF(name string) (CTFInfo, error) {
	o := h.objectByName(name)
	if o == nil {
		return CTFInfo{}, ErrNoObject
	}
	info, ok := ctfLocate(o)
	if !ok {
		return CTFInfo{}, ErrNoCTF
	}
	return info, nil
}
