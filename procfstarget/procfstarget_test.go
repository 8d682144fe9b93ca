// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package procfstarget

import (
	"testing"

	"github.com/ryao/procsym/proc"
)

func TestParseMapsLineBasic(t *testing.T) {
	line := "00400000-00452000 r-xp 00000000 08:02 173521      /usr/bin/dbus-daemon"
	m, ok := parseMapsLine(line, 4096)
	if !ok {
		t.Fatalf("parseMapsLine failed to parse a well-formed line")
	}
	if m.Base != 0x400000 || m.Size != 0x52000 {
		t.Fatalf("Base/Size = %s/%#x, want 0x400000/0x52000", m.Base, m.Size)
	}
	if m.Flags&proc.MapRead == 0 || m.Flags&proc.MapExec == 0 || m.Flags&proc.MapWrite != 0 {
		t.Fatalf("Flags = %s, want r-x", m.Flags)
	}
	if m.Mapname != "/usr/bin/dbus-daemon" {
		t.Fatalf("Mapname = %q", m.Mapname)
	}
}

func TestParseMapsLineAnonymous(t *testing.T) {
	line := "7f0000000000-7f0000021000 rw-p 00000000 00:00 0"
	m, ok := parseMapsLine(line, 4096)
	if !ok {
		t.Fatalf("parseMapsLine failed on an anonymous mapping")
	}
	if m.Mapname != "" {
		t.Fatalf("Mapname = %q, want empty for an anonymous mapping", m.Mapname)
	}
}

func TestParseMapsLineHeapAndStack(t *testing.T) {
	heap, ok := parseMapsLine("00600000-00621000 rw-p 00000000 00:00 0 [heap]", 4096)
	if !ok || heap.Flags&proc.MapBreak == 0 {
		t.Fatalf("heap mapping not flagged MapBreak: %+v ok=%v", heap, ok)
	}
	stack, ok := parseMapsLine("7ffd00000000-7ffd00021000 rw-p 00000000 00:00 0 [stack]", 4096)
	if !ok || stack.Flags&proc.MapStack == 0 {
		t.Fatalf("stack mapping not flagged MapStack: %+v ok=%v", stack, ok)
	}
}

func TestParseMapsLineMalformed(t *testing.T) {
	if _, ok := parseMapsLine("not a maps line", 4096); ok {
		t.Fatalf("expected malformed line to be rejected")
	}
}
