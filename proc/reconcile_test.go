// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import "testing"

func TestLinkObjectByNameExactMatch(t *testing.T) {
	reg := newObjectRegistry()
	reg.add(&Object{Mapname: "/lib64/libc.so.6"})

	o := linkObjectByName(reg, "/lib64/libc.so.6")
	if o == nil {
		t.Fatalf("exact match not found")
	}
}

func TestLinkObjectByNameBasenameMatch(t *testing.T) {
	reg := newObjectRegistry()
	reg.add(&Object{Mapname: "/lib64/libc.so.6"})

	o := linkObjectByName(reg, "libc.so.6")
	if o == nil || o.Mapname != "/lib64/libc.so.6" {
		t.Fatalf("basename match failed: %+v", o)
	}
}

func TestLinkObjectByNameAoutAlias(t *testing.T) {
	reg := newObjectRegistry()
	reg.add(&Object{Mapname: ObjExec})

	o := linkObjectByName(reg, "")
	if o == nil || o.Mapname != ObjExec {
		t.Fatalf("empty-name alias did not resolve to a.out: %+v", o)
	}
}

func TestLinkObjectByNameNoMatch(t *testing.T) {
	reg := newObjectRegistry()
	reg.add(&Object{Mapname: "/lib64/libc.so.6"})

	if o := linkObjectByName(reg, "/usr/lib/libssl.so.3"); o != nil {
		t.Fatalf("expected no match, got %+v", o)
	}
}
