// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import "testing"

func TestObjectRefcounting(t *testing.T) {
	o := &Object{Mapname: "libc.so.6"}
	m1 := &Mapping{RawMapping: RawMapping{Base: 0x1000, Size: 0x1000, Mapname: "libc.so.6"}}
	m2 := &Mapping{RawMapping: RawMapping{Base: 0x2000, Size: 0x1000, Mapname: "libc.so.6"}}

	o.bind(m1)
	if o.primary != m1 {
		t.Fatalf("first bind did not become primary")
	}
	o.bind(m2)
	if o.primary != m1 {
		t.Fatalf("second bind must not displace the primary mapping")
	}
	if o.ref != 2 {
		t.Fatalf("ref = %d, want 2", o.ref)
	}

	if last := o.unbind(); last {
		t.Fatalf("unbind reported last reference too early")
	}
	if last := o.unbind(); !last {
		t.Fatalf("unbind did not report the last reference dropping")
	}
}

func TestObjectRegistryDiscoveryOrder(t *testing.T) {
	reg := newObjectRegistry()
	a := &Object{Mapname: "a"}
	b := &Object{Mapname: "b"}
	reg.add(a)
	reg.add(b)

	var order []string
	reg.each(func(o *Object) bool {
		order = append(order, o.Mapname)
		return true
	})
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("discovery order = %v, want [a b]", order)
	}

	reg.remove(a)
	order = nil
	reg.each(func(o *Object) bool {
		order = append(order, o.Mapname)
		return true
	})
	if len(order) != 1 || order[0] != "b" {
		t.Fatalf("after remove, order = %v, want [b]", order)
	}
}

func TestObjectRegistryByMapname(t *testing.T) {
	reg := newObjectRegistry()
	reg.add(&Object{Mapname: "a.out"})
	reg.add(&Object{Mapname: "libc.so.6"})

	if o := reg.byMapname("libc.so.6"); o == nil || o.Mapname != "libc.so.6" {
		t.Fatalf("byMapname did not find libc.so.6")
	}
	if reg.byMapname("missing") != nil {
		t.Fatalf("byMapname found a nonexistent object")
	}
}
