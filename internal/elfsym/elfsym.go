// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elfsym fills the two gaps debug/elf leaves for procsym: it
// decodes a symbol table living in a section debug/elf does not
// auto-parse (an auxiliary table shaped like .dynsym but under a
// different section name), and it assembles the bytes of a synthetic
// ELF image from nothing but a process's own memory, for when the
// on-disk file and the mapped image have diverged beyond recognition.
package elfsym

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// ParseSection decodes sec as if it were a standard SHT_SYMTAB/
// SHT_DYNSYM section, resolving each entry's name against strtab. Go's
// debug/elf only does this for the two sections it recognizes by type;
// procsym's auxiliary table is a plain SHT_SYMTAB clone the linker
// places under a different name, so the decode is reimplemented here
// following the same Elf32_Sym/Elf64_Sym layout debug/elf uses
// internally.
func ParseSection(f *elf.File, sec, strtab *elf.Section) ([]elf.Symbol, error) {
	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("elfsym: reading %s: %w", sec.Name, err)
	}
	strData, err := strtab.Data()
	if err != nil {
		return nil, fmt.Errorf("elfsym: reading %s: %w", strtab.Name, err)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if f.Data == elf.ELFDATA2MSB {
		order = binary.BigEndian
	}

	var entSize int
	switch f.Class {
	case elf.ELFCLASS32:
		entSize = 16
	case elf.ELFCLASS64:
		entSize = 24
	default:
		return nil, fmt.Errorf("elfsym: unsupported class %v", f.Class)
	}
	if len(data)%entSize != 0 {
		return nil, fmt.Errorf("elfsym: %s size %d not a multiple of %d", sec.Name, len(data), entSize)
	}

	n := len(data) / entSize
	syms := make([]elf.Symbol, 0, n)
	for i := 0; i < n; i++ {
		raw := data[i*entSize : (i+1)*entSize]
		var s elf.Symbol
		var nameOff uint32
		switch f.Class {
		case elf.ELFCLASS32:
			nameOff = order.Uint32(raw[0:4])
			s.Value = uint64(order.Uint32(raw[4:8]))
			s.Size = uint64(order.Uint32(raw[8:12]))
			s.Info = raw[12]
			s.Other = raw[13]
			s.Section = elf.SectionIndex(order.Uint16(raw[14:16]))
		case elf.ELFCLASS64:
			nameOff = order.Uint32(raw[0:4])
			s.Info = raw[4]
			s.Other = raw[5]
			s.Section = elf.SectionIndex(order.Uint16(raw[6:8]))
			s.Value = order.Uint64(raw[8:16])
			s.Size = order.Uint64(raw[16:24])
		}
		s.Name = cString(strData, nameOff)
		syms = append(syms, s)
	}
	return syms, nil
}

// FakeDesc carries the bytes (and their live virtual addresses) FakeImage
// wraps in a synthetic ELF's .dynsym, .dynstr, and .dynamic sections. PLT
// bounds are carried by address/size only: a synthetic .plt section
// header never holds real stub bytes, since nothing downstream reads PLT
// section contents, only its virtual address range (see pltBounds).
type FakeDesc struct {
	DynSym      []byte
	DynSymAddr  uint64
	DynStr      []byte
	DynStrAddr  uint64
	Dynamic     []byte
	DynamicAddr uint64
	PLTAddr     uint64
	PLTSize     uint64
}

// FakeImage assembles the bytes of a minimal synthetic ELF file carrying
// a real section header table — .dynsym, .dynstr, .dynamic, and (when
// known) .plt, backed by desc's live-memory-read bytes — so the rest of
// the ELF Ingest pipeline can treat a divergent object the same as a
// normal one instead of losing its symbol data (§4.4 step 4). The
// original's fake_elf32/fake_elf64 bodies aren't present anywhere in the
// retrieved source for this spec; this single implementation replaces
// their documented 32/64-bit duplication per the spec's Design Notes.
func FakeImage(class elf.Class, data elf.Data, machine elf.Machine, etype elf.Type, desc FakeDesc) ([]byte, error) {
	var order binary.ByteOrder = binary.LittleEndian
	if data == elf.ELFDATA2MSB {
		order = binary.BigEndian
	}

	var ehsize, shentsize int
	var symEntSize, dynEntSize uint64
	switch class {
	case elf.ELFCLASS32:
		ehsize, shentsize = 52, 40
		symEntSize, dynEntSize = 16, 8
	case elf.ELFCLASS64:
		ehsize, shentsize = 64, 64
		symEntSize, dynEntSize = 24, 16
	default:
		return nil, fmt.Errorf("elfsym: unsupported class %v", class)
	}

	type secDef struct {
		name       string
		typ        elf.SectionType
		addr, size uint64
		data       []byte
		link       uint32
		entsize    uint64
	}

	const dynstrIdx = 2 // stable regardless of whether .plt is present

	names := []string{"", ".dynsym", ".dynstr", ".dynamic"}
	secs := []secDef{
		{},
		{typ: elf.SHT_DYNSYM, addr: desc.DynSymAddr, size: uint64(len(desc.DynSym)), data: desc.DynSym, link: dynstrIdx, entsize: symEntSize},
		{typ: elf.SHT_STRTAB, addr: desc.DynStrAddr, size: uint64(len(desc.DynStr)), data: desc.DynStr},
		{typ: elf.SHT_DYNAMIC, addr: desc.DynamicAddr, size: uint64(len(desc.Dynamic)), data: desc.Dynamic, link: dynstrIdx, entsize: dynEntSize},
	}
	if desc.PLTSize > 0 {
		names = append(names, ".plt")
		secs = append(secs, secDef{typ: elf.SHT_PROGBITS, addr: desc.PLTAddr, size: desc.PLTSize})
	}
	names = append(names, ".shstrtab")

	var shstrtab bytes.Buffer
	shstrtab.WriteByte(0)
	nameOff := make([]uint32, len(names))
	for i, n := range names {
		if n == "" {
			continue
		}
		nameOff[i] = uint32(shstrtab.Len())
		shstrtab.WriteString(n)
		shstrtab.WriteByte(0)
	}
	secs = append(secs, secDef{typ: elf.SHT_STRTAB, data: shstrtab.Bytes(), size: uint64(shstrtab.Len())})
	shstrndx := len(secs) - 1

	dataOff := uint64(ehsize)
	offs := make([]uint64, len(secs))
	var payload bytes.Buffer
	for i, s := range secs {
		if len(s.data) == 0 {
			continue
		}
		offs[i] = dataOff + uint64(payload.Len())
		payload.Write(s.data)
	}

	shoff := dataOff + uint64(payload.Len())
	buf := make([]byte, int(shoff)+len(secs)*shentsize)
	copy(buf[0:4], "\x7fELF")
	buf[4] = byte(class)
	buf[5] = byte(data)
	buf[6] = 1 // EI_VERSION
	buf[7] = byte(elf.ELFOSABI_NONE)
	copy(buf[dataOff:], payload.Bytes())

	switch class {
	case elf.ELFCLASS32:
		order.PutUint16(buf[16:18], uint16(etype))
		order.PutUint16(buf[18:20], uint16(machine))
		order.PutUint32(buf[20:24], 1) // e_version
		order.PutUint32(buf[32:36], uint32(shoff))
		order.PutUint16(buf[40:42], uint16(ehsize))
		order.PutUint16(buf[46:48], uint16(shentsize))
		order.PutUint16(buf[48:50], uint16(len(secs)))
		order.PutUint16(buf[50:52], uint16(shstrndx))
	case elf.ELFCLASS64:
		order.PutUint16(buf[16:18], uint16(etype))
		order.PutUint16(buf[18:20], uint16(machine))
		order.PutUint32(buf[20:24], 1) // e_version
		order.PutUint64(buf[40:48], shoff)
		order.PutUint16(buf[52:54], uint16(ehsize))
		order.PutUint16(buf[58:60], uint16(shentsize))
		order.PutUint16(buf[60:62], uint16(len(secs)))
		order.PutUint16(buf[62:64], uint16(shstrndx))
	}

	sh := buf[shoff:]
	for i, s := range secs {
		e := sh[i*shentsize : (i+1)*shentsize]
		switch class {
		case elf.ELFCLASS32:
			order.PutUint32(e[0:4], nameOff[i])
			order.PutUint32(e[4:8], uint32(s.typ))
			if s.addr != 0 {
				order.PutUint32(e[8:12], uint32(elf.SHF_ALLOC))
			}
			order.PutUint32(e[12:16], uint32(s.addr))
			order.PutUint32(e[16:20], uint32(offs[i]))
			order.PutUint32(e[20:24], uint32(s.size))
			order.PutUint32(e[24:28], s.link)
			order.PutUint32(e[36:40], uint32(s.entsize))
		case elf.ELFCLASS64:
			order.PutUint32(e[0:4], nameOff[i])
			order.PutUint32(e[4:8], uint32(s.typ))
			if s.addr != 0 {
				order.PutUint64(e[8:16], uint64(elf.SHF_ALLOC))
			}
			order.PutUint64(e[16:24], s.addr)
			order.PutUint64(e[24:32], offs[i])
			order.PutUint64(e[32:40], s.size)
			order.PutUint32(e[40:44], s.link)
			order.PutUint64(e[56:64], s.entsize)
		}
	}

	return buf, nil
}

func cString(data []byte, off uint32) string {
	if int(off) >= len(data) {
		return ""
	}
	end := bytes.IndexByte(data[off:], 0)
	if end < 0 {
		return string(data[off:])
	}
	return string(data[off : int(off)+end])
}
