// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import "sort"

// Order selects the traversal order for the §6 iteration operations.
type Order int

const (
	// OrderNatural visits mappings in address order and objects in
	// discovery order, the original's default Pmapping_iter/
	// Pobject_iter traversal.
	OrderNatural Order = iota
	// OrderByAddr visits objects sorted by their primary mapping's
	// base address.
	OrderByAddr
	// OrderByName visits objects sorted by Mapname.
	OrderByName
)

// MappingIter calls fn once per current mapping in address order,
// stopping early if fn returns false.
func (h *Handle) MappingIter(fn func(*Mapping) bool) {
	for _, m := range h.mapper.all() {
		if !fn(m) {
			return
		}
	}
}

// ObjectIter calls fn once per registered object in the requested
// order, stopping early if fn returns false.
func (h *Handle) ObjectIter(order Order, fn func(*Object) bool) {
	switch order {
	case OrderByAddr:
		objs := h.objectsSnapshot()
		sort.Slice(objs, func(i, j int) bool {
			bi, bj := objBase(objs[i]), objBase(objs[j])
			return bi < bj
		})
		for _, o := range objs {
			if !fn(o) {
				return
			}
		}
	case OrderByName:
		objs := h.objectsSnapshot()
		sort.Slice(objs, func(i, j int) bool { return objs[i].Mapname < objs[j].Mapname })
		for _, o := range objs {
			if !fn(o) {
				return
			}
		}
	default:
		h.objects.each(fn)
	}
}

func (h *Handle) objectsSnapshot() []*Object {
	var objs []*Object
	h.objects.each(func(o *Object) bool {
		objs = append(objs, o)
		return true
	})
	return objs
}

func objBase(o *Object) Address {
	if o.primary == nil {
		return 0
	}
	return o.primary.Min()
}

// SymbolIter calls fn once per retained symbol (the types optimize
// keeps) in an object's chosen table, in the requested order, stopping
// early if fn returns false.
func (h *Handle) SymbolIter(o *Object, table SymTable, order Order, fn func(SymInfo) bool) {
	t := o.symtab
	if table == SymtabDyn {
		t = o.dynsym
	}
	if t == nil {
		return
	}
	idx := t.byAddr
	if order == OrderByName {
		idx = t.byName
	}
	for _, i := range idx {
		s := t.getSym(i)
		info := SymInfo{Name: s.Name, Object: o.Mapname, Lmid: o.Lmid, Table: table, ID: i}
		if !fn(info) {
			return
		}
	}
}
