// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import "strings"

// linkObjectByName resolves a LoadObject's reported name to an Object
// already present in the registry, using the original's three-pass
// match (object_name_to_map / object_to_map):
//
//  1. exact match against Mapname or Lname.
//  2. basename match: the load object's name with any directory
//     prefix stripped equals the object's Mapname basename.
//  3. "a.out" alias: an empty load object name, or the literal ObjExec
//     ("a.out"), is treated as naming the executable object.
//
// The first pass that yields a match wins; later passes never override
// an earlier hit.
func linkObjectByName(reg *objectRegistry, name string) *Object {
	if o := reg.byMapname(name); o != nil {
		return o
	}
	var byLname *Object
	reg.each(func(o *Object) bool {
		if name != "" && o.Lname == name {
			byLname = o
			return false
		}
		return true
	})
	if byLname != nil {
		return byLname
	}

	base := basename(name)
	var byBase *Object
	reg.each(func(o *Object) bool {
		if basename(o.Mapname) == base {
			byBase = o
			return false
		}
		return true
	})
	if byBase != nil {
		return byBase
	}

	if name == "" || name == ObjExec {
		return reg.byMapname(ObjExec)
	}
	return nil
}

func basename(s string) string {
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// reconcileLoadObjects walks every LoadObject the source reports and
// binds its Lbase/Lmid/Lname onto the matching registry Object, the
// original's map_iter callback driven by rd_loadobj_iter. Load objects
// that match nothing (a library mapped but not yet ingested into the
// registry) are silently skipped; Handle will pick them up on the next
// refresh once buildFileSymtab has run for their mapping.
func reconcileLoadObjects(reg *objectRegistry, objs []LoadObject, names func(Address) string) {
	for _, lo := range objs {
		name := names(lo.NameAddr)
		o := linkObjectByName(reg, name)
		if o == nil {
			continue
		}
		o.Lname = name
		o.Lbase = lo.Base
		o.Lmid = lo.LinkMapID
	}
}
