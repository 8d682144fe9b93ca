// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import (
	"debug/elf"
	"sort"
	"strings"
)

// symbolTable is the Symbol Indexer (§4.5) for one of an Object's two
// symbol tables (.symtab-ish or .dynsym). It optionally layers an
// auxiliary table (the .SUNW_ldynsym-equivalent sorted ahead of the
// primary table) in front of the primary one, and addresses both
// through a single logical index: [0,len(aux)) selects the aux table,
// [len(aux),len(aux)+len(primary)) selects the primary table. This is
// exactly the original's aux+primary dispatch in symtab_getsym.
type symbolTable struct {
	aux     []elf.Symbol
	primary []elf.Symbol

	byAddr []int // logical indices, sorted by byaddrCmp
	byName []int // logical indices, sorted by name
}

func newSymbolTable(primary, aux []elf.Symbol) *symbolTable {
	return &symbolTable{primary: primary, aux: aux}
}

func (t *symbolTable) count() int { return len(t.aux) + len(t.primary) }

// getSym dispatches a logical index to the underlying Symbol, the
// original's symtab_getsym.
func (t *symbolTable) getSym(i int) elf.Symbol {
	if i < len(t.aux) {
		return t.aux[i]
	}
	return t.primary[i-len(t.aux)]
}

// retainType reports whether a symbol's type is one optimize
// keeps in the sorted index: function, object, common, or TLS symbols.
// Everything else (SECTION, FILE, NOTYPE, ...) is excluded from lookup
// but remains reachable by raw index.
func retainType(typ elf.SymType) bool {
	switch typ {
	case elf.STT_FUNC, elf.STT_OBJECT, elf.STT_COMMON, elf.STT_TLS:
		return true
	}
	return false
}

// optimize builds the byAddr and byName index arrays: the
// original's optimize_symtab, minus the sentinel-name retain filter
// (Go's debug/elf already drops the null first symbol) and minus the
// qsort-vs-insertion-sort switch (sort.SliceStable is always an adequate,
// non-regressing sort here; DisableSort controls search strategy, not
// index construction).
func (t *symbolTable) optimize() {
	n := t.count()
	idx := make([]int, 0, n)
	for i := 0; i < n; i++ {
		s := t.getSym(i)
		if s.Name == "" {
			continue
		}
		if !retainType(elf.ST_TYPE(s.Info)) {
			continue
		}
		idx = append(idx, i)
	}

	byAddr := append([]int(nil), idx...)
	sort.SliceStable(byAddr, func(a, b int) bool {
		return byaddrCmp(t.getSym(byAddr[a]), t.getSym(byAddr[b])) < 0
	})
	t.byAddr = byAddr

	byName := append([]int(nil), idx...)
	sort.SliceStable(byName, func(a, b int) bool {
		return t.getSym(byName[a]).Name < t.getSym(byName[b]).Name
	})
	t.byName = byName
}

// byaddrCmp imposes the total order the original's byaddr_cmp_common
// uses, both to sort the byAddr index and to pick a preferred symbol
// among several sharing one address (preferIndex runs the same
// comparison after the binary search has found the bracket). Order,
// most to least significant:
//
//  1. value, ascending
//  2. STT_FUNC before any other type
//  3. non-local bind (GLOBAL/WEAK) before STB_LOCAL
//  4. a name not prefixed with '$' before one that is (the mapping
//     symbols some toolchains emit, e.g. "$d"/"$t" on ARM, are least
//     preferred)
//  5. fewer leading underscores
//  6. smaller st_size
//  7. lexicographically smaller name, as a final tiebreak so the order
//     is total
func byaddrCmp(a, b elf.Symbol) int {
	if a.Value != b.Value {
		if a.Value < b.Value {
			return -1
		}
		return 1
	}
	af := elf.ST_TYPE(a.Info) == elf.STT_FUNC
	bf := elf.ST_TYPE(b.Info) == elf.STT_FUNC
	if af != bf {
		if af {
			return -1
		}
		return 1
	}
	al := elf.ST_BIND(a.Info) == elf.STB_LOCAL
	bl := elf.ST_BIND(b.Info) == elf.STB_LOCAL
	if al != bl {
		if !al {
			return -1
		}
		return 1
	}
	ad := strings.HasPrefix(a.Name, "$")
	bd := strings.HasPrefix(b.Name, "$")
	if ad != bd {
		if !ad {
			return -1
		}
		return 1
	}
	au, bu := leadingUnderscores(a.Name), leadingUnderscores(b.Name)
	if au != bu {
		return au - bu
	}
	if a.Size != b.Size {
		if a.Size < b.Size {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Name, b.Name)
}

func leadingUnderscores(s string) int {
	n := 0
	for n < len(s) && s[n] == '_' {
		n++
	}
	return n
}
