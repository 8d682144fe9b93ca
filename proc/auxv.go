// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import (
	"fmt"
	"strings"
)

// auxVec is the Aux-Vector Reader (§4.7): the target's raw (tag, value)
// pairs plus the AT_BASE backfill the original performs when a target
// reports AT_BASE=0 (statically linked, or a linker old enough not to
// set it) by scanning the mapping list for an "ld-*.so" entry instead.
type auxVec struct {
	entries []AuxEntry
}

func newAuxVec(raw []AuxEntry) *auxVec {
	return &auxVec{entries: raw}
}

// value returns the value associated with tag, mirroring Pgetauxval.
func (v *auxVec) value(tag int64) (uint64, bool) {
	for _, e := range v.entries {
		if e.Tag == tag {
			return e.Value, true
		}
	}
	return 0, false
}

// all returns every entry, mirroring Pgetauxvec.
func (v *auxVec) all() []AuxEntry { return v.entries }

// backfillBase resolves AT_BASE when the target reported zero or never
// supplied it, by scanning the mapper for a mapping whose name looks
// like a dynamic linker image ("ld-" prefix, ".so" somewhere in the
// name), the same fallback Preadauxvec performs against
// /proc/<pid>/maps. Returns false if AT_BASE was absent or zero and no
// candidate mapping was found either.
func (v *auxVec) backfillBase(maps []*Mapping) bool {
	base, ok := v.value(AtBase)
	if ok && base != 0 {
		return true
	}
	for _, m := range maps {
		name := m.Mapname
		slash := strings.LastIndexByte(name, '/')
		base := name
		if slash >= 0 {
			base = name[slash+1:]
		}
		if strings.HasPrefix(base, "ld-") && strings.Contains(base, ".so") {
			v.setBase(uint64(m.Min()))
			return true
		}
	}
	return false
}

func (v *auxVec) setBase(val uint64) {
	for i := range v.entries {
		if v.entries[i].Tag == AtBase {
			v.entries[i].Value = val
			return
		}
	}
	v.entries = append(v.entries, AuxEntry{Tag: AtBase, Value: val})
}

func (v *auxVec) String() string {
	var b strings.Builder
	for _, e := range v.entries {
		fmt.Fprintf(&b, "%d=0x%x\n", e.Tag, e.Value)
	}
	return b.String()
}
