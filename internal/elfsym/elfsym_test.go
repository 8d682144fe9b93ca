// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elfsym

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"
)

func TestFakeImageRoundTripsThroughDebugElf(t *testing.T) {
	dynstr := []byte("\x00f\x00")
	dynsym := make([]byte, 48) // reserved null entry (index 0) + one Elf64_Sym
	binary.LittleEndian.PutUint32(dynsym[24:28], 1)
	dynsym[28] = byte(elf.STT_FUNC)
	binary.LittleEndian.PutUint16(dynsym[30:32], uint16(elf.SHN_ABS))
	binary.LittleEndian.PutUint64(dynsym[32:40], 0x401000)
	dynamic := make([]byte, 16) // one DT_NULL entry

	desc := FakeDesc{
		DynSym:      dynsym,
		DynSymAddr:  0x402000,
		DynStr:      dynstr,
		DynStrAddr:  0x403000,
		Dynamic:     dynamic,
		DynamicAddr: 0x404000,
		PLTAddr:     0x405000,
		PLTSize:     0x20,
	}
	raw, err := FakeImage(elf.ELFCLASS64, elf.ELFDATA2LSB, elf.EM_X86_64, elf.ET_DYN, desc)
	if err != nil {
		t.Fatalf("FakeImage: %v", err)
	}

	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("debug/elf rejected the fake image: %v", err)
	}
	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_X86_64 || f.Type != elf.ET_DYN {
		t.Fatalf("header mismatch: class=%v machine=%v type=%v", f.Class, f.Machine, f.Type)
	}

	syms, err := f.DynamicSymbols()
	if err != nil {
		t.Fatalf("DynamicSymbols: %v", err)
	}
	if len(syms) != 1 || syms[0].Name != "f" || syms[0].Value != 0x401000 {
		t.Fatalf("syms = %+v, want one symbol named f at 0x401000", syms)
	}

	if v, err := f.DynValue(elf.DT_NULL); err != nil || len(v) == 0 {
		t.Fatalf("DynValue(DT_NULL) = %v, %v, want a match against the synthesized .dynamic", v, err)
	}

	plt := f.Section(".plt")
	if plt == nil || plt.Addr != desc.PLTAddr || plt.Size != desc.PLTSize {
		t.Fatalf(".plt section = %+v, want addr=%#x size=%#x", plt, desc.PLTAddr, desc.PLTSize)
	}
}

func TestFakeImage32Bit(t *testing.T) {
	desc := FakeDesc{
		DynSym:      make([]byte, 16), // one Elf32_Sym
		DynSymAddr:  0x1000,
		DynStr:      []byte{0},
		DynStrAddr:  0x2000,
		Dynamic:     make([]byte, 8), // one Dyn32 entry
		DynamicAddr: 0x3000,
	}
	raw, err := FakeImage(elf.ELFCLASS32, elf.ELFDATA2LSB, elf.EM_386, elf.ET_DYN, desc)
	if err != nil {
		t.Fatalf("FakeImage: %v", err)
	}
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("debug/elf rejected the 32-bit fake image: %v", err)
	}
	if f.Class != elf.ELFCLASS32 {
		t.Fatalf("Class = %v, want ELFCLASS32", f.Class)
	}
	if _, err := f.DynamicSymbols(); err != nil {
		t.Fatalf("DynamicSymbols on 32-bit image: %v", err)
	}
}

// buildELFWithSections assembles a minimal real 64-bit little-endian
// ELF with an honest section header table: a NUL first section, a
// payload section named sectionName, a string table holding strs, and
// a trailing .shstrtab for the section names themselves. elf.NewFile
// attaches a real backing reader to sections built this way, unlike a
// hand-built elf.Section literal, so Data() works.
func buildELFWithSections(t *testing.T, sectionName string, payload, strs []byte) *elf.File {
	t.Helper()
	const ehsize, shentsize = 64, 64

	shstrtab := []byte("\x00" + sectionName + "\x00.strtab\x00.shstrtab\x00")
	nameOff := 1
	strtabNameOff := nameOff + len(sectionName) + 1
	shstrtabNameOff := strtabNameOff + len(".strtab") + 1

	var body bytes.Buffer
	body.Write(payload)
	payloadOff := uint64(ehsize)
	strOff := payloadOff + uint64(len(payload))
	body.Write(strs)
	shstrOff := strOff + uint64(len(strs))
	body.Write(shstrtab)
	shOff := shstrOff + uint64(len(shstrtab))

	buf := make([]byte, shOff+5*shentsize)
	copy(buf[payloadOff:], body.Bytes())

	copy(buf[0:4], "\x7fELF")
	buf[4] = byte(elf.ELFCLASS64)
	buf[5] = byte(elf.ELFDATA2LSB)
	buf[6] = 1
	order := binary.LittleEndian
	order.PutUint16(buf[16:18], uint16(elf.ET_EXEC))
	order.PutUint16(buf[18:20], uint16(elf.EM_X86_64))
	order.PutUint32(buf[20:24], 1)
	order.PutUint16(buf[52:54], ehsize)
	order.PutUint64(buf[40:48], shOff) // e_shoff
	order.PutUint16(buf[58:60], shentsize)
	order.PutUint16(buf[60:62], 5) // e_shnum: NULL, payload, strtab, padding, shstrtab
	order.PutUint16(buf[62:64], 4) // e_shstrndx

	writeShdr := func(i int, nameOff uint32, typ elf.SectionType, off, size uint64, link uint32) {
		sh := buf[shOff+uint64(i)*shentsize : shOff+uint64(i+1)*shentsize]
		order.PutUint32(sh[0:4], nameOff)
		order.PutUint32(sh[4:8], uint32(typ))
		order.PutUint64(sh[24:32], off)
		order.PutUint64(sh[32:40], size)
		order.PutUint32(sh[40:44], link)
	}
	writeShdr(0, 0, elf.SHT_NULL, 0, 0, 0)
	writeShdr(1, uint32(nameOff), elf.SHT_PROGBITS, payloadOff, uint64(len(payload)), 0)
	writeShdr(2, uint32(strtabNameOff), elf.SHT_STRTAB, strOff, uint64(len(strs)), 0)
	writeShdr(3, 0, elf.SHT_NULL, 0, 0, 0) // padding, unused
	writeShdr(4, uint32(shstrtabNameOff), elf.SHT_STRTAB, shstrOff, uint64(len(shstrtab)), 0)

	f, err := elf.NewFile(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("building test ELF: %v", err)
	}
	return f
}

func TestParseSectionDecodesAuxiliarySymtab(t *testing.T) {
	strtab := []byte{0, 'f', 'o', 'o', 0}
	sym := make([]byte, 24)
	sym[0] = 1 // name offset into strtab -> "foo"
	sym[4] = byte(elf.STT_FUNC) | byte(elf.STB_GLOBAL)<<4
	sym[6] = 1 // section index
	sym[8] = 0x34  // value
	sym[16] = 0x10 // size

	f := buildELFWithSections(t, "auxsym", sym, strtab)
	symSec := f.Section("auxsym")
	strSec := f.Section(".strtab")
	if symSec == nil || strSec == nil {
		t.Fatalf("test ELF missing expected sections: %+v", f.Sections)
	}

	syms, err := ParseSection(f, symSec, strSec)
	if err != nil {
		t.Fatalf("ParseSection: %v", err)
	}
	if len(syms) != 1 {
		t.Fatalf("got %d symbols, want 1", len(syms))
	}
	if syms[0].Name != "foo" {
		t.Fatalf("Name = %q, want foo", syms[0].Name)
	}
	if syms[0].Value != 0x34 || syms[0].Size != 0x10 {
		t.Fatalf("Value/Size = %#x/%#x, want 0x34/0x10", syms[0].Value, syms[0].Size)
	}
}
