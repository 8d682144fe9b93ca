// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import "testing"

func TestMapperAtFindsContainingMapping(t *testing.T) {
	mp := newMapper()
	mp.refresh([]RawMapping{
		{Base: 0x1000, Size: 0x1000, Mapname: "a"},
		{Base: 0x3000, Size: 0x2000, Mapname: "b"},
	}, func(*Mapping) {})

	cases := []struct {
		addr Address
		want string
	}{
		{0x1000, "a"},
		{0x1fff, "a"},
		{0x2000, ""}, // gap
		{0x3000, "b"},
		{0x4fff, "b"},
		{0x5000, ""}, // past end
	}
	for _, c := range cases {
		m := mp.at(c.addr)
		got := ""
		if m != nil {
			got = m.Mapname
		}
		if got != c.want {
			t.Errorf("at(%s) = %q, want %q", c.addr, got, c.want)
		}
	}
}

func TestMapperRefreshCarriesForwardIdenticalMapping(t *testing.T) {
	mp := newMapper()
	mp.refresh([]RawMapping{{Base: 0x1000, Size: 0x1000, Mapname: "a"}}, func(*Mapping) {})
	first := mp.at(0x1000)
	first.obj = &Object{Mapname: "a"}

	mp.refresh([]RawMapping{{Base: 0x1000, Size: 0x1000, Mapname: "a"}}, func(*Mapping) {})
	second := mp.at(0x1000)
	if second != first {
		t.Fatalf("refresh replaced an identical mapping instead of carrying it forward")
	}
	if second.obj == nil {
		t.Fatalf("refresh lost the Object binding on an unchanged mapping")
	}
}

func TestMapperRefreshReleasesGoneMapping(t *testing.T) {
	mp := newMapper()
	mp.refresh([]RawMapping{{Base: 0x1000, Size: 0x1000, Mapname: "a"}}, func(*Mapping) {})

	var released []string
	mp.refresh(nil, func(m *Mapping) { released = append(released, m.Mapname) })

	if len(released) != 1 || released[0] != "a" {
		t.Fatalf("released = %v, want [a]", released)
	}
	if mp.at(0x1000) != nil {
		t.Fatalf("mapping still present after disappearing from target")
	}
}

func TestMappingContainsHandlesAddrBelowBase(t *testing.T) {
	m := &Mapping{RawMapping: RawMapping{Base: 0x2000, Size: 0x1000}}
	if m.Contains(0x1000) {
		t.Fatalf("Contains reported an address below the mapping's base as contained")
	}
}

func TestRawMappingSameIdentityIgnoresBreakStackBits(t *testing.T) {
	a := RawMapping{Base: 1, Size: 1, Flags: MapRead}
	b := RawMapping{Base: 1, Size: 1, Flags: MapRead | MapBreak}
	if !a.sameIdentity(b) {
		t.Fatalf("sameIdentity treated a MapBreak-only difference as a distinct mapping")
	}
	c := RawMapping{Base: 1, Size: 1, Flags: MapWrite}
	if a.sameIdentity(c) {
		t.Fatalf("sameIdentity ignored a real permission change")
	}
}
