// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import "sort"

// mapper is the Address-Space Mapper (§4.1): a sorted array of Mapping,
// refreshed against a target's raw mapping snapshot by a three-pointer
// merge, and searched by binary search keyed on Contains (spec §8
// invariant 1: addr-base < size using a single unsigned subtraction, so
// the search never needs to worry about base+size overflowing).
type mapper struct {
	maps []*Mapping // sorted ascending by Base, non-overlapping
}

func newMapper() *mapper { return &mapper{} }

// refresh reconciles the mapper's current array against a fresh,
// sorted raw-mapping list from the target. It walks both lists with a
// pair of cursors (the original's Pupdate_maps three-pointer merge):
// for each position, the raw entry is compared against the mapping at
// the same rank in the prior array.
//
//   - same identity (RawMapping.sameIdentity): the old Mapping carries
//     forward unchanged, keeping its Object binding.
//   - old mapping absent from the new list: its Object reference is
//     dropped via release.
//   - new raw entry not present before: a fresh, unbound Mapping is
//     created; the caller (Handle) binds an Object to it lazily on
//     first lookup.
//
// on entry raw must already be sorted ascending by Base with no
// overlaps; the target is responsible for that invariant, mirroring
// the original's reliance on a sorted /proc/pid/map file.
func (mp *mapper) refresh(raw []RawMapping, release func(*Mapping)) []*Mapping {
	old := mp.maps
	next := make([]*Mapping, 0, len(raw))

	i, j := 0, 0
	for i < len(old) && j < len(raw) {
		o, r := old[i], raw[j]
		switch {
		case o.RawMapping.sameIdentity(r):
			next = append(next, o)
			i++
			j++
		case o.Base < r.Base:
			release(o)
			i++
		default: // r.Base <= o.Base but not identical: treat r as new
			next = append(next, &Mapping{RawMapping: r})
			j++
		}
	}
	for ; i < len(old); i++ {
		release(old[i])
	}
	for ; j < len(raw); j++ {
		next = append(next, &Mapping{RawMapping: raw[j]})
	}

	mp.maps = next
	return appended(old, next)
}

// appended returns the subset of next whose identity was not present
// in old, i.e. the mappings that are genuinely new this refresh.
// refresh returns this set to its caller; Handle.Reset does not use it.
func appended(old, next []*Mapping) []*Mapping {
	seen := make(map[*Mapping]bool, len(old))
	for _, m := range old {
		seen[m] = true
	}
	var fresh []*Mapping
	for _, m := range next {
		if !seen[m] {
			fresh = append(fresh, m)
		}
	}
	return fresh
}

// at returns the Mapping containing addr, or nil.
func (mp *mapper) at(addr Address) *Mapping {
	maps := mp.maps
	n := sort.Search(len(maps), func(i int) bool {
		return maps[i].Max() > addr
	})
	if n < len(maps) && maps[n].Contains(addr) {
		return maps[n]
	}
	return nil
}

// byName returns the first mapping whose Mapname equals name.
func (mp *mapper) byName(name string) *Mapping {
	for _, m := range mp.maps {
		if m.Mapname == name {
			return m
		}
	}
	return nil
}

// textMapping returns the mapping that should be treated as the
// executable's primary text mapping: the first executable (MapExec)
// mapping backed by the a.out object, per §6's AddrToTextMap.
func (mp *mapper) textMapping(exe *Object) *Mapping {
	for _, m := range mp.maps {
		if m.obj == exe && m.Flags&MapExec != 0 {
			return m
		}
	}
	return nil
}

// all returns the current mapping array, ordered by address. Callers
// must not retain it across the next refresh.
func (mp *mapper) all() []*Mapping { return mp.maps }
