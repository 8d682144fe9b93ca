// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import (
	"debug/elf"
	"testing"
)

func sym(name string, value, size uint64, typ elf.SymType, bind elf.SymBind, sect elf.SectionIndex) elf.Symbol {
	return elf.Symbol{
		Name:    name,
		Info:    byte(bind)<<4 | byte(typ),
		Value:   value,
		Size:    size,
		Section: sect,
	}
}

func TestByaddrCmpOrdersByValueThenType(t *testing.T) {
	f := sym("f", 0x1000, 16, elf.STT_FUNC, elf.STB_GLOBAL, 1)
	obj := sym("o", 0x1000, 16, elf.STT_OBJECT, elf.STB_GLOBAL, 1)
	if byaddrCmp(f, obj) >= 0 {
		t.Fatalf("FUNC did not sort before OBJECT at the same address")
	}

	lower := sym("lower", 0x1000, 0, elf.STT_FUNC, elf.STB_GLOBAL, 1)
	higher := sym("higher", 0x2000, 0, elf.STT_FUNC, elf.STB_GLOBAL, 1)
	if byaddrCmp(lower, higher) >= 0 {
		t.Fatalf("lower value did not sort first")
	}
}

func TestByaddrCmpPrefersGlobalOverLocal(t *testing.T) {
	local := sym("l", 0x1000, 0, elf.STT_FUNC, elf.STB_LOCAL, 1)
	global := sym("g", 0x1000, 0, elf.STT_FUNC, elf.STB_GLOBAL, 1)
	if byaddrCmp(global, local) >= 0 {
		t.Fatalf("global bind did not sort before local bind at the same address/type")
	}
}

func TestByaddrCmpIsATotalOrderAdjacentSwapFree(t *testing.T) {
	// Two entries that are fully identical except name must still
	// produce a consistent, antisymmetric order (S2-style property).
	a := sym("aaa", 0x1000, 4, elf.STT_FUNC, elf.STB_GLOBAL, 1)
	b := sym("bbb", 0x1000, 4, elf.STT_FUNC, elf.STB_GLOBAL, 1)
	if byaddrCmp(a, b) >= 0 {
		t.Fatalf("expected a < b lexicographically as the final tiebreak")
	}
	if byaddrCmp(b, a) <= 0 {
		t.Fatalf("comparator not antisymmetric")
	}
	if byaddrCmp(a, a) != 0 {
		t.Fatalf("comparator not reflexive")
	}
}

func TestOptimizeDropsUnretainedTypesAndEmptyNames(t *testing.T) {
	syms := []elf.Symbol{
		sym("", 0, 0, elf.STT_NOTYPE, elf.STB_LOCAL, 0),
		sym("section", 0x10, 0, elf.STT_SECTION, elf.STB_LOCAL, 1),
		sym("fn", 0x20, 8, elf.STT_FUNC, elf.STB_GLOBAL, 1),
	}
	tbl := newSymbolTable(syms, nil)
	tbl.optimize()
	if len(tbl.byAddr) != 1 || tbl.getSym(tbl.byAddr[0]).Name != "fn" {
		t.Fatalf("optimize kept unretained symbols: byAddr=%v", tbl.byAddr)
	}
}

func TestSymByAddrBinaryFindsEnclosingSymbol(t *testing.T) {
	syms := []elf.Symbol{
		sym("first", 0x1000, 0x100, elf.STT_FUNC, elf.STB_GLOBAL, 1),
		sym("second", 0x2000, 0x10, elf.STT_FUNC, elf.STB_GLOBAL, 1),
	}
	tbl := newSymbolTable(syms, nil)
	tbl.optimize()

	s, _, ok := tbl.symByAddr(0x1050, false)
	if !ok || s.Name != "first" {
		t.Fatalf("symByAddr(0x1050) = %v, %v, want first", s, ok)
	}
	if _, _, ok := tbl.symByAddr(0x1100, false); ok {
		t.Fatalf("symByAddr matched past the end of the enclosing symbol's range")
	}
	s, _, ok = tbl.symByAddr(0x2000, false)
	if !ok || s.Name != "second" {
		t.Fatalf("symByAddr(0x2000) = %v, %v, want second", s, ok)
	}
}

func TestSymByAddrLinearAgreesWithBinary(t *testing.T) {
	syms := []elf.Symbol{
		sym("a", 0x1000, 0x10, elf.STT_FUNC, elf.STB_GLOBAL, 1),
		sym("b", 0x1020, 0x10, elf.STT_FUNC, elf.STB_GLOBAL, 1),
	}
	tbl := newSymbolTable(syms, nil)
	tbl.optimize()

	bs, _, bok := tbl.symByAddr(0x1005, false)
	ls, _, lok := tbl.symByAddr(0x1005, true)
	if bok != lok || bs.Name != ls.Name {
		t.Fatalf("binary and linear search disagreed: %v/%v vs %v/%v", bs, bok, ls, lok)
	}
}

func TestSymByNamePrefersDefinedOverUndefined(t *testing.T) {
	syms := []elf.Symbol{
		sym("puts", 0, 0, elf.STT_FUNC, elf.STB_GLOBAL, elf.SHN_UNDEF),
		sym("puts", 0x4000, 0x20, elf.STT_FUNC, elf.STB_GLOBAL, 1),
	}
	tbl := newSymbolTable(syms, nil)
	tbl.optimize()

	s, _, ok := tbl.symByName("puts", false)
	if !ok || s.Section == elf.SHN_UNDEF {
		t.Fatalf("symByName returned the undefined entry instead of the defined one: %+v", s)
	}
}

func TestSymByNameFallsBackToUndefinedWhenNoDefinitionExists(t *testing.T) {
	syms := []elf.Symbol{
		sym("missing", 0, 0, elf.STT_FUNC, elf.STB_GLOBAL, elf.SHN_UNDEF),
	}
	tbl := newSymbolTable(syms, nil)
	tbl.optimize()

	s, _, ok := tbl.symByName("missing", false)
	if !ok || s.Section != elf.SHN_UNDEF {
		t.Fatalf("expected the tentative UNDEF match to be returned, got %+v ok=%v", s, ok)
	}
}

func TestAuxLogicalIndexingDispatchesToRightTable(t *testing.T) {
	aux := []elf.Symbol{sym("aux0", 0x10, 0, elf.STT_FUNC, elf.STB_GLOBAL, 1)}
	primary := []elf.Symbol{sym("prim0", 0x20, 0, elf.STT_FUNC, elf.STB_GLOBAL, 1)}
	tbl := newSymbolTable(primary, aux)

	if got := tbl.getSym(0).Name; got != "aux0" {
		t.Fatalf("getSym(0) = %q, want aux0", got)
	}
	if got := tbl.getSym(1).Name; got != "prim0" {
		t.Fatalf("getSym(1) = %q, want prim0", got)
	}
	if tbl.count() != 2 {
		t.Fatalf("count() = %d, want 2", tbl.count())
	}
}
