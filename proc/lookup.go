// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import (
	"debug/elf"
	"sort"
)

// symByAddr finds the symbol whose [Value, Value+Size) range contains
// addr, searching the table's byAddr index. When disableSort is set it
// falls back to a linear scan (the original's LIBPROC_NO_QSORT escape
// hatch, §9 supplemented feature 4). The sorted index is still built at
// ingest time either way; only the search strategy changes.
//
// Several symbols can legitimately claim the same address (an alias, or
// a zero-size label); among candidates, preferIndex picks the one
// byaddrCmp orders first, after the binary search result is widened to
// the left.
func (t *symbolTable) symByAddr(addr Address, disableSort bool) (elf.Symbol, int, bool) {
	if disableSort {
		return t.symByAddrLinear(addr)
	}
	return t.symByAddrBinary(addr)
}

func (t *symbolTable) symByAddrBinary(addr Address) (elf.Symbol, int, bool) {
	idx := t.byAddr
	n := sort.Search(len(idx), func(i int) bool {
		return Address(t.getSym(idx[i]).Value) > addr
	})
	// n is the first entry with Value > addr; the candidate bracket is
	// every entry at or before n-1 whose range still covers addr. Scan
	// backward collecting candidates until an entry below addr no longer
	// covers it, mirroring sym_by_addr_binary's post-search
	// widen-and-prefer step.
	best := -1
	for i := n - 1; i >= 0; i-- {
		s := t.getSym(idx[i])
		if !contains(s, addr) {
			if Address(s.Value) < addr {
				break
			}
			continue
		}
		best = preferIndex(t, best, idx[i])
	}
	if best < 0 {
		return elf.Symbol{}, 0, false
	}
	return t.getSym(best), best, true
}

func (t *symbolTable) symByAddrLinear(addr Address) (elf.Symbol, int, bool) {
	best := -1
	for i := 0; i < t.count(); i++ {
		s := t.getSym(i)
		if !retainType(elf.ST_TYPE(s.Info)) || s.Name == "" {
			continue
		}
		if contains(s, addr) {
			best = preferIndex(t, best, i)
		}
	}
	if best < 0 {
		return elf.Symbol{}, 0, false
	}
	return t.getSym(best), best, true
}

func contains(s elf.Symbol, addr Address) bool {
	if s.Size == 0 {
		return Address(s.Value) == addr
	}
	return uint64(addr-Address(s.Value)) < s.Size
}

func preferIndex(t *symbolTable, cur, cand int) int {
	if cur < 0 {
		return cand
	}
	if byaddrCmp(t.getSym(cand), t.getSym(cur)) < 0 {
		return cand
	}
	return cur
}

// symByName finds a symbol by exact name match. A process's dynamic
// symbol table frequently has several undefined (SHN_UNDEF) entries for
// imported names alongside at most one defined entry; the original's
// sym_by_name keeps scanning after an UNDEF hit in case a defined
// instance follows, matching spec.md's testable property S3.
func (t *symbolTable) symByName(name string, disableSort bool) (elf.Symbol, int, bool) {
	if disableSort {
		return t.symByNameLinear(name)
	}
	return t.symByNameBinary(name)
}

func (t *symbolTable) symByNameBinary(name string) (elf.Symbol, int, bool) {
	idx := t.byName
	n := sort.Search(len(idx), func(i int) bool {
		return t.getSym(idx[i]).Name >= name
	})
	var tentative int = -1
	for i := n; i < len(idx) && t.getSym(idx[i]).Name == name; i++ {
		s := t.getSym(idx[i])
		if s.Section != elf.SHN_UNDEF {
			return s, idx[i], true
		}
		if tentative < 0 {
			tentative = idx[i]
		}
	}
	if tentative >= 0 {
		return t.getSym(tentative), tentative, true
	}
	return elf.Symbol{}, 0, false
}

func (t *symbolTable) symByNameLinear(name string) (elf.Symbol, int, bool) {
	tentative := -1
	for i := 0; i < t.count(); i++ {
		s := t.getSym(i)
		if s.Name != name {
			continue
		}
		if s.Section != elf.SHN_UNDEF {
			return s, i, true
		}
		if tentative < 0 {
			tentative = i
		}
	}
	if tentative >= 0 {
		return t.getSym(tentative), tentative, true
	}
	return elf.Symbol{}, 0, false
}

// lookupResult is the internal shape a completed lookup produces before
// Handle formats it into the public §6 return types.
type lookupResult struct {
	Object  *Object
	Table   SymTable
	Index   int
	Symbol  elf.Symbol
	Address Address // dyn_base-adjusted value
}

// xlookupByAddr implements §4.6 Pxlookup_by_addr semantics for one
// object: look in dynsym first (matching the original's preference for
// the smaller, always-present table before falling back to the full
// symtab), subtracting the object's dynBase before the search and
// adding it back to the result — except for STT_TLS symbols, whose
// Value is already section-relative and must not be rebased.
func xlookupByAddr(o *Object, addr Address, disableSort bool) (lookupResult, bool) {
	rel := addr
	if o.dynBase != 0 {
		rel = addr.Add(-int64(o.dynBase))
	}
	for _, cand := range []struct {
		tbl *symbolTable
		tid SymTable
	}{
		{o.dynsym, SymtabDyn},
		{o.symtab, SymtabSym},
	} {
		if cand.tbl == nil {
			continue
		}
		s, i, ok := cand.tbl.symByAddr(rel, disableSort)
		if !ok {
			continue
		}
		val := Address(s.Value)
		if elf.ST_TYPE(s.Info) != elf.STT_TLS {
			val = val.Add(int64(o.dynBase))
		}
		return lookupResult{Object: o, Table: cand.tid, Index: i, Symbol: s, Address: val}, true
	}
	return lookupResult{}, false
}

// xlookupByName implements §4.6 Pxlookup_by_name for one object,
// searching dynsym then symtab and preferring a defined hit in either
// table over an undefined one found earlier (the same tentative-match
// logic symByName applies within a single table, lifted one level).
func xlookupByName(o *Object, name string, disableSort bool) (lookupResult, bool) {
	var tentative *lookupResult
	for _, cand := range []struct {
		tbl *symbolTable
		tid SymTable
	}{
		{o.dynsym, SymtabDyn},
		{o.symtab, SymtabSym},
	} {
		if cand.tbl == nil {
			continue
		}
		s, i, ok := cand.tbl.symByName(name, disableSort)
		if !ok {
			continue
		}
		val := Address(s.Value)
		if elf.ST_TYPE(s.Info) != elf.STT_TLS {
			val = val.Add(int64(o.dynBase))
		}
		res := lookupResult{Object: o, Table: cand.tid, Index: i, Symbol: s, Address: val}
		if s.Section != elf.SHN_UNDEF {
			return res, true
		}
		if tentative == nil {
			tentative = &res
		}
	}
	if tentative != nil {
		return *tentative, true
	}
	return lookupResult{}, false
}
