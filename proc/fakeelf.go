// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"

	"github.com/ryao/procsym/internal/elfsym"
)

// buildFakeELF synthesizes a minimal ELF image (§4.4 step 4) wrapping a
// .dynsym, .dynstr, .dynamic, and a .plt section header, so the rest of
// the ingest pipeline can treat a file/memory-divergent object uniformly
// with a normal one. Unlike the discarded on-disk bytes, diskELF's
// *layout* (section virtual addresses and sizes) is still trusted —
// nothing moves a DT_SYMTAB/DT_STRTAB address at runtime, only their
// contents can drift — so it is used to locate exactly what to re-read
// live from the target.
func buildFakeELF(diskELF *elf.File, t Target, dynBase Address) (*elf.File, error) {
	desc, err := readLiveDynDesc(diskELF, t, dynBase)
	if err != nil {
		return nil, err
	}

	raw, err := elfsym.FakeImage(diskELF.Class, diskELF.Data, diskELF.Machine, diskELF.Type, desc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedELF, err)
	}
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: fake image rejected: %v", ErrMalformedELF, err)
	}
	return f, nil
}

// readLiveDynDesc reads a .dynsym, .dynstr, and .dynamic worth of bytes
// live from the target, at the addresses and sizes diskELF's own
// (no-longer-content-trusted, still-layout-trusted) section headers
// report; .plt is carried by address/size alone, since nothing downstream
// needs its bytes.
func readLiveDynDesc(diskELF *elf.File, t Target, dynBase Address) (elfsym.FakeDesc, error) {
	dynsymSec := diskELF.Section(".dynsym")
	dynstrSec := diskELF.Section(".dynstr")
	dynSec := diskELF.Section(".dynamic")
	if dynsymSec == nil || dynstrSec == nil || dynSec == nil {
		return elfsym.FakeDesc{}, fmt.Errorf("%w: no .dynsym/.dynstr/.dynamic in the on-disk image to re-read live", ErrMalformedELF)
	}

	dynsymAddr := Address(dynsymSec.Addr).Add(int64(dynBase))
	dynstrAddr := Address(dynstrSec.Addr).Add(int64(dynBase))
	dynAddr := Address(dynSec.Addr).Add(int64(dynBase))

	dynsym, err := readLive(t, dynsymAddr, dynsymSec.Size)
	if err != nil {
		return elfsym.FakeDesc{}, fmt.Errorf("%w: reading live .dynsym: %v", ErrTargetUnreadable, err)
	}
	dynstr, err := readLive(t, dynstrAddr, dynstrSec.Size)
	if err != nil {
		return elfsym.FakeDesc{}, fmt.Errorf("%w: reading live .dynstr: %v", ErrTargetUnreadable, err)
	}
	dynamic, err := readLive(t, dynAddr, dynSec.Size)
	if err != nil {
		return elfsym.FakeDesc{}, fmt.Errorf("%w: reading live .dynamic: %v", ErrTargetUnreadable, err)
	}

	desc := elfsym.FakeDesc{
		DynSym:      dynsym,
		DynSymAddr:  uint64(dynsymAddr),
		DynStr:      dynstr,
		DynStrAddr:  uint64(dynstrAddr),
		Dynamic:     dynamic,
		DynamicAddr: uint64(dynAddr),
	}
	if plt := diskELF.Section(".plt"); plt != nil {
		desc.PLTAddr = uint64(Address(plt.Addr).Add(int64(dynBase)))
		desc.PLTSize = plt.Size
	}
	return desc, nil
}

func readLive(t Target, addr Address, size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	buf := make([]byte, size)
	n, err := t.ReadMem(addr, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:n], nil
}
