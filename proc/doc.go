// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package proc is the process symbol resolution core of an inspection
// library. Given a Target — a live process or a post-mortem core image
// reachable only through a handful of read primitives — it maintains a
// model of the target's virtual address-space mappings, associates each
// mapping with the object file backing it, indexes that file's symbol
// tables, and answers the two queries an inspector needs: which symbol
// contains a given address, and where a given symbol lives.
//
// Process acquisition, process control, breakpoints, CTF type parsing,
// and raw /proc readers are all external collaborators; proc consumes
// them through the Target interface and the LoadObject feed passed to
// Handle.Reset, and never reaches past them.
package proc
