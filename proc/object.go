// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import (
	"container/list"
	"debug/elf"
)

// Object is the backing file for one or more mappings: one entry of the
// Object Registry (§4.2). It is built at most once (initialized guards
// buildFileSymtab so a parse failure is never retried) and is reference
// counted by the mappings that point at it; when the last mapping
// referencing it is dropped during a refresh, it is freed.
type Object struct {
	// Mapname is the short name the target reported for this object's
	// primary mapping (a path or basename); Lname is the load object's
	// own idea of its name, as the link-map reconciler read it from the
	// target (empty until reconciled).
	Mapname string
	Lname   string

	// Lbase/Lmid come from the link-map reconciler once a LoadObject
	// has been matched to this Object; both are zero for an object the
	// reconciler has not yet (or never will) associate with a live
	// link map, e.g. an a.out before the linker has mapped itself in.
	Lbase Address
	Lmid  Lmid

	primary *Mapping // the mapping this object was first discovered through
	ref     int       // number of mappings currently pointing at this object

	initialized bool // buildFileSymtab has run (successfully or not)
	buildErr    error

	file   ReadAtCloser
	ef     *elf.File
	efmem  []byte // not set: a faked Object's synthetic image is held by ef's own reader
	faked  bool

	class elf.Class
	data   elf.Data
	etype  elf.Type

	dynBase Address // ET_DYN link bias; zero for ET_EXEC

	pltBase Address
	pltSize uint64
	jmpRel  uint64

	saddrs []addrRange // sorted PT_LOAD segment ranges, for is_mapping_in_file / overlap binding

	symtab *symbolTable // .symtab, or nil
	dynsym *symbolTable // .SUNW_ldynsym + .dynsym, or nil

	ctfOff  int64
	ctfSize int64
	hasCTF  bool

	elem *list.Element // this object's node in Handle.objects
}

// bind increments the reference count and records mapping as the
// primary mapping the first time an Object gains a reference, mirroring
// the original's file_info_t.file_ref/file_map bookkeeping.
func (o *Object) bind(m *Mapping) {
	o.ref++
	if o.primary == nil {
		o.primary = m
	}
	m.obj = o
}

// unbind drops a reference. The caller removes the Object from the
// registry once unbind reports the count reached zero.
func (o *Object) unbind() (last bool) {
	o.ref--
	if o.ref < 0 {
		o.ref = 0
	}
	return o.ref == 0
}

func (o *Object) close() {
	if o.file != nil {
		o.file.Close()
		o.file = nil
	}
}

// objectRegistry is the Object Registry (§4.2): objects in discovery
// order, exactly as the original keeps file_info_t nodes on Pr->file_head
// so that iteration order matches first-seen order rather than address
// order.
type objectRegistry struct {
	objs *list.List // of *Object
}

func newObjectRegistry() *objectRegistry {
	return &objectRegistry{objs: list.New()}
}

func (r *objectRegistry) add(o *Object) {
	o.elem = r.objs.PushBack(o)
}

func (r *objectRegistry) remove(o *Object) {
	if o.elem != nil {
		r.objs.Remove(o.elem)
		o.elem = nil
	}
	o.close()
}

// each calls fn for every registered object in discovery order, stopping
// early if fn returns false.
func (r *objectRegistry) each(fn func(*Object) bool) {
	for e := r.objs.Front(); e != nil; e = e.Next() {
		if !fn(e.Value.(*Object)) {
			return
		}
	}
}

// byMapname returns the first object whose Mapname equals name, or nil.
func (r *objectRegistry) byMapname(name string) *Object {
	var found *Object
	r.each(func(o *Object) bool {
		if o.Mapname == name {
			found = o
			return false
		}
		return true
	})
	return found
}
