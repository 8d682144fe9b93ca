// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import (
	"fmt"
	"io"
	"log"
)

// Handle is the process symbol resolution core: it wires the Address-
// Space Mapper, Object Registry, Link-Map Reconciler, ELF Ingest, and
// Lookup Engine together behind the public operations of spec.md §6.
// A Handle is built once around a Target and kept in sync with it by
// calling Reset whenever the target's mappings may have changed (after
// an exec, a dlopen, or simply periodically for a long-lived live
// process).
type Handle struct {
	target  Target
	loadSrc LoadObjectSource // nil for a core image: no live linker to ask

	mapper  *mapper
	objects *objectRegistry
	auxv    *auxVec
	exe     *Object

	log *log.Logger

	// DisableSort runs every lookup as a linear scan instead of a
	// binary search over a sorted index (§9 supplemented feature 4,
	// the original's LIBPROC_NO_QSORT). The sorted byAddr/byName
	// indexes are still built when an object is ingested; only the
	// search strategy changes.
	DisableSort bool
}

// New builds a Handle around t and performs the initial Reset. src may
// be nil when the target has no live dynamic linker to consult (a core
// image); AddrToLoadobj and friends then report a zero link-map id and
// load base for every object, since only the reconciler sets them.
// logger may be nil, in which case diagnostics are discarded.
func New(t Target, src LoadObjectSource, logger *log.Logger) (*Handle, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &Handle{
		target:  t,
		loadSrc: src,
		mapper:  newMapper(),
		objects: newObjectRegistry(),
		log:     logger,
	}
	if err := h.Reset(); err != nil {
		return nil, err
	}
	return h, nil
}

// Reset re-synchronizes the Handle against the target's current state:
// it refreshes the mapping array, drops Objects whose last mapping
// disappeared, re-resolves the executable object, reconciles the live
// link-map chain (if loadSrc is non-nil), and re-reads the auxiliary
// vector. It is safe to call repeatedly on a live process whose address
// space keeps changing; previously-ingested Objects are never re-parsed
// (§4.4: initialized once, or not at all).
func (h *Handle) Reset() error {
	raw, err := h.target.Mappings()
	if err != nil {
		return fmt.Errorf("%w: reading mappings: %v", ErrTargetUnreadable, err)
	}
	h.mapper.refresh(raw, h.release)

	if exePath, err := h.target.ExePath(); err == nil {
		if m := h.mapper.byName(exePath); m != nil {
			o := h.objectFor(m)
			if o != nil {
				o.Mapname = ObjExec
				h.exe = o
			}
		}
	}

	if h.loadSrc != nil {
		var los []LoadObject
		err := h.loadSrc.LoadObjects(func(lo LoadObject) bool {
			los = append(los, lo)
			return true
		})
		if err == nil {
			reconcileLoadObjects(h.objects, los, h.readLoadObjectName)
		}
	}

	rawAux, err := h.target.Auxv()
	if err != nil {
		h.log.Printf("proc: reading auxv: %v", err)
	} else {
		h.auxv = newAuxVec(rawAux)
		h.auxv.backfillBase(h.mapper.all())
	}

	return nil
}

func (h *Handle) readLoadObjectName(addr Address) string {
	if addr == 0 {
		return ""
	}
	s, err := h.target.ReadString(addr, 4096)
	if err != nil {
		return ""
	}
	return s
}

// objectFor returns the Object bound to m, creating and binding one
// (and running ELF Ingest on first need) if m has none yet. An
// anonymous mapping (empty Mapname) never creates an Object of its own:
// there is nothing to ingest. Creating a new Object also runs the Object
// Registry's overlap-binding walk (§4.2 object_new): every other unbound
// mapping whose range overlaps one of the object's PT_LOAD segments is bound
// to it too, so a load object split across several mappings (text, data,
// an anonymous bss tail) resolves to one shared Object.
func (h *Handle) objectFor(m *Mapping) *Object {
	if m.obj != nil {
		return m.obj
	}
	if m.Mapname == "" {
		return nil
	}
	o := h.objects.byMapname(m.Mapname)
	isNew := o == nil
	if o == nil {
		o = &Object{Mapname: m.Mapname}
		h.objects.add(o)
	}
	o.bind(m)
	if !o.initialized {
		buildFileSymtab(o, h.target, m.Min())
		o.rebase(m.Min())
		if isNew {
			h.bindOverlappingMappings(o)
		}
	}
	return o
}

// bindOverlappingMappings implements the remainder of object_new: once
// o's PT_LOAD segment ranges are known, every unbound mapping in the
// mapper whose range overlaps one of them is bound to o as well.
// Mappings already bound to some object are left alone (diagnostic only
// in the original).
func (h *Handle) bindOverlappingMappings(o *Object) {
	if len(o.saddrs) == 0 {
		return
	}
	for _, m := range h.mapper.all() {
		if m.obj != nil {
			continue
		}
		if isMappingInFile(m, o.saddrs) {
			o.bind(m)
		}
	}
}

// release drops m's Object reference, freeing the Object if this was
// its last mapping. Passed to mapper.refresh as the callback invoked
// for every mapping that disappears across a refresh.
func (h *Handle) release(m *Mapping) {
	o := m.obj
	if o == nil {
		return
	}
	if o.unbind() {
		h.objects.remove(o)
		if h.exe == o {
			h.exe = nil
		}
	}
	m.obj = nil
}

// objectByName resolves name through the same three-pass match the
// Link-Map Reconciler uses (§4.3), so NameToMap/XLookupByName agree
// with how a live dlopen'd library gets associated with its mapping.
func (h *Handle) objectByName(name string) *Object {
	if name == ObjExec {
		if h.exe != nil {
			return h.exe
		}
	}
	return linkObjectByName(h.objects, name)
}

// AddrToMap returns the mapping containing addr.
func (h *Handle) AddrToMap(addr Address) (*Mapping, error) {
	m := h.mapper.at(addr)
	if m == nil {
		return nil, ErrNoMapping
	}
	return m, nil
}

// AddrToTextMap returns the executable's primary text mapping.
func (h *Handle) AddrToTextMap() (*Mapping, error) {
	if h.exe == nil {
		return nil, ErrNoObject
	}
	m := h.mapper.textMapping(h.exe)
	if m == nil {
		return nil, ErrNoMapping
	}
	return m, nil
}

// NameToMap returns the primary mapping of the named object.
func (h *Handle) NameToMap(name string) (*Mapping, error) {
	o := h.objectByName(name)
	if o == nil || o.primary == nil {
		return nil, ErrNoObject
	}
	return o.primary, nil
}

// LmidToMap returns the primary mapping of the named object within the
// given link-map namespace; lmid may be LmidEvery to match any.
func (h *Handle) LmidToMap(lmid Lmid, name string) (*Mapping, error) {
	o := h.objectByName(name)
	if o == nil || o.primary == nil {
		return nil, ErrNoObject
	}
	if lmid != LmidEvery && o.Lmid != lmid {
		return nil, ErrNoObject
	}
	return o.primary, nil
}

// Objname returns the object name backing the mapping at addr.
func (h *Handle) Objname(addr Address) (string, error) {
	m := h.mapper.at(addr)
	if m == nil {
		return "", ErrNoMapping
	}
	o := h.objectFor(m)
	if o == nil {
		return "", ErrNoObject
	}
	return o.Mapname, nil
}

// Lmid returns the link-map namespace of the object backing addr.
func (h *Handle) Lmid(addr Address) (Lmid, error) {
	m := h.mapper.at(addr)
	if m == nil {
		return 0, ErrNoMapping
	}
	o := h.objectFor(m)
	if o == nil {
		return 0, ErrNoObject
	}
	return o.Lmid, nil
}

func objectLoadObject(o *Object) LoadObject {
	lo := LoadObject{
		Base:      o.Lbase,
		DataBase:  o.dynBase,
		PLTBase:   o.pltBase,
		PLTSize:   o.pltSize,
		LinkMapID: o.Lmid,
	}
	if o.primary != nil {
		lo.End = o.primary.Max()
	}
	return lo
}

// AddrToLoadobj returns the load-object record for the object mapped at
// addr.
func (h *Handle) AddrToLoadobj(addr Address) (LoadObject, error) {
	m := h.mapper.at(addr)
	if m == nil {
		return LoadObject{}, ErrNoMapping
	}
	o := h.objectFor(m)
	if o == nil {
		return LoadObject{}, ErrNoObject
	}
	return objectLoadObject(o), nil
}

// NameToLoadobj returns the load-object record for the named object.
func (h *Handle) NameToLoadobj(name string) (LoadObject, error) {
	o := h.objectByName(name)
	if o == nil {
		return LoadObject{}, ErrNoObject
	}
	return objectLoadObject(o), nil
}

// LmidToLoadobj returns the load-object record for the named object
// within the given link-map namespace.
func (h *Handle) LmidToLoadobj(lmid Lmid, name string) (LoadObject, error) {
	o := h.objectByName(name)
	if o == nil {
		return LoadObject{}, ErrNoObject
	}
	if lmid != LmidEvery && o.Lmid != lmid {
		return LoadObject{}, ErrNoObject
	}
	return objectLoadObject(o), nil
}

// LookupByAddr returns the name of the symbol whose range contains
// addr.
func (h *Handle) LookupByAddr(addr Address) (string, error) {
	info, _, err := h.XLookupByAddr(addr)
	if err != nil {
		return "", err
	}
	return info.Name, nil
}

// XLookupByAddr is LookupByAddr's ancillary-information variant: it
// also reports which object and symbol table the match came from and
// the symbol's absolute (dynBase-adjusted) address.
func (h *Handle) XLookupByAddr(addr Address) (SymInfo, Address, error) {
	m := h.mapper.at(addr)
	if m == nil {
		return SymInfo{}, 0, ErrNoMapping
	}
	o := h.objectFor(m)
	if o == nil {
		return SymInfo{}, 0, ErrNoObject
	}
	res, ok := xlookupByAddr(o, addr, h.DisableSort)
	if !ok {
		return SymInfo{}, 0, ErrNoSymbol
	}
	return SymInfo{Name: res.Symbol.Name, Object: o.Mapname, Lmid: o.Lmid, Table: res.Table, ID: res.Index}, res.Address, nil
}

// LookupByName returns the address of the symbol named name within
// objname (ObjEvery searches every object in discovery order, stopping
// at the first match).
func (h *Handle) LookupByName(objname, name string) (Address, error) {
	_, addr, err := h.XLookupByName(objname, name)
	return addr, err
}

// XLookupByName is LookupByName's ancillary-information variant.
func (h *Handle) XLookupByName(objname, name string) (SymInfo, Address, error) {
	if objname != ObjEvery {
		o := h.objectByName(objname)
		if o == nil {
			return SymInfo{}, 0, ErrNoObject
		}
		return h.lookupByNameIn(o, name)
	}
	var last error = ErrNoObject
	var found SymInfo
	var addr Address
	h.objects.each(func(o *Object) bool {
		info, a, err := h.lookupByNameIn(o, name)
		if err == nil {
			found, addr = info, a
			last = nil
			return false
		}
		if err != ErrNoObject {
			last = err
		}
		return true
	})
	if last != nil {
		return SymInfo{}, 0, last
	}
	return found, addr, nil
}

func (h *Handle) lookupByNameIn(o *Object, name string) (SymInfo, Address, error) {
	res, ok := xlookupByName(o, name, h.DisableSort)
	if !ok {
		return SymInfo{}, 0, ErrNoSymbol
	}
	return SymInfo{Name: res.Symbol.Name, Object: o.Mapname, Lmid: o.Lmid, Table: res.Table, ID: res.Index}, res.Address, nil
}

// SetLoadObjectSource attaches (or replaces) the dynamic-linker debug
// agent used to reconcile load objects. Typically called once, after
// the initial Reset has resolved the executable Object well enough for
// the caller to compute a DT_DEBUG address (see DebugWordAddr), with a
// second Reset call afterward to pick up the newly available source.
func (h *Handle) SetLoadObjectSource(src LoadObjectSource) { h.loadSrc = src }

// DebugWordAddr returns the address of the executable's DT_DEBUG d_val
// field and the target's pointer size, for a caller wiring up an
// rtldagent.Agent. It fails on a statically linked executable or a
// core image whose ingest never resolved a real (non-faked) ELF image.
func (h *Handle) DebugWordAddr() (Address, int, error) {
	if h.exe == nil {
		return 0, 0, ErrNoObject
	}
	addr, ptrSize, ok := debugWordAddr(h.exe)
	if !ok {
		return 0, 0, fmt.Errorf("proc: %w: no DT_DEBUG in executable", ErrNotLive)
	}
	return addr, ptrSize, nil
}

// GetAuxVal returns the value of one auxiliary-vector tag.
func (h *Handle) GetAuxVal(tag int64) (uint64, bool) {
	if h.auxv == nil {
		return 0, false
	}
	return h.auxv.value(tag)
}

// GetAuxVec returns the full auxiliary vector.
func (h *Handle) GetAuxVec() []AuxEntry {
	if h.auxv == nil {
		return nil
	}
	return h.auxv.all()
}
