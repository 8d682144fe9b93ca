// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import (
	"debug/elf"
	"testing"
)

func TestCtfLocateRequiresSymtabLink(t *testing.T) {
	ef := &elf.File{
		Sections: []*elf.Section{
			{SectionHeader: elf.SectionHeader{Name: "", Type: elf.SHT_NULL}},
			{SectionHeader: elf.SectionHeader{Name: ".SUNW_ctf", Type: elf.SHT_PROGBITS, Offset: 0x100, Size: 0x40, Link: 2}},
			{SectionHeader: elf.SectionHeader{Name: ".text", Type: elf.SHT_PROGBITS}},
		},
	}
	o := &Object{ef: ef}
	if _, ok := ctfLocate(o); ok {
		t.Fatalf("ctfLocate matched a .SUNW_ctf section whose sh_link points at a non-symbol section")
	}
}

func TestCtfLocateAcceptsValidSymtabLink(t *testing.T) {
	ef := &elf.File{
		Sections: []*elf.Section{
			{SectionHeader: elf.SectionHeader{Name: "", Type: elf.SHT_NULL}},
			{SectionHeader: elf.SectionHeader{Name: ".symtab", Type: elf.SHT_SYMTAB}},
			{SectionHeader: elf.SectionHeader{Name: ".SUNW_ctf", Type: elf.SHT_PROGBITS, Offset: 0x100, Size: 0x40, Link: 1}},
		},
	}
	o := &Object{ef: ef}
	info, ok := ctfLocate(o)
	if !ok {
		t.Fatalf("ctfLocate rejected a .SUNW_ctf section whose sh_link correctly points at a SHT_SYMTAB section")
	}
	if info.Offset != 0x100 || info.Size != 0x40 {
		t.Fatalf("info = %+v, want offset=0x100 size=0x40", info)
	}
}

func TestCtfLocateCachesOnceFound(t *testing.T) {
	ef := &elf.File{
		Sections: []*elf.Section{
			{SectionHeader: elf.SectionHeader{Name: "", Type: elf.SHT_NULL}},
			{SectionHeader: elf.SectionHeader{Name: ".dynsym", Type: elf.SHT_DYNSYM}},
			{SectionHeader: elf.SectionHeader{Name: ".ctf", Type: elf.SHT_PROGBITS, Offset: 0x200, Size: 0x80, Link: 1}},
		},
	}
	o := &Object{ef: ef}
	if _, ok := ctfLocate(o); !ok {
		t.Fatalf("ctfLocate should have matched .ctf via its SHT_DYNSYM link")
	}

	o.ef = nil // prove the second call never touches ef again
	info, ok := ctfLocate(o)
	if !ok || info.Offset != 0x200 || info.Size != 0x80 {
		t.Fatalf("ctfLocate did not serve the cached result, got %+v, %v", info, ok)
	}
}

func TestCtfLocateNoCandidateSection(t *testing.T) {
	ef := &elf.File{Sections: []*elf.Section{{SectionHeader: elf.SectionHeader{Name: ".text"}}}}
	o := &Object{ef: ef}
	if _, ok := ctfLocate(o); ok {
		t.Fatalf("ctfLocate matched when no .SUNW_ctf/.ctf section exists")
	}
}
