// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proc

import "errors"

// Sentinel errors for the error-kind taxonomy of spec.md §7. Callers
// should use errors.Is against these, not string comparison; wrapped
// errors carry additional context via fmt.Errorf("%w", ...).
var (
	// ErrNoMapping is returned when an address falls outside every
	// known mapping.
	ErrNoMapping = errors.New("proc: no mapping at address")

	// ErrNoObject is returned when a named object has no matching
	// load object or mapping.
	ErrNoObject = errors.New("proc: no such object")

	// ErrNoSymbol is returned when a lookup finds no matching symbol.
	ErrNoSymbol = errors.New("proc: no such symbol")

	// ErrTargetUnreadable is returned when a Target read primitive
	// fails for reasons outside proc's control (process exited,
	// core truncated, permission denied).
	ErrTargetUnreadable = errors.New("proc: target unreadable")

	// ErrMalformedELF is returned when an object file's ELF headers
	// cannot be parsed or are internally inconsistent.
	ErrMalformedELF = errors.New("proc: malformed ELF image")

	// ErrUnsupportedELF is returned for an ELF class or endianness
	// proc does not implement (anything other than 32/64-bit
	// little/big-endian as produced by debug/elf).
	ErrUnsupportedELF = errors.New("proc: unsupported ELF class or encoding")

	// ErrNotLive is returned by operations that need a live linker
	// debug hook: Handle.DebugWordAddr returns it when the executable
	// offers no usable DT_DEBUG entry.
	ErrNotLive = errors.New("proc: target is not a live process")

	// ErrNoCTF is returned by the CTF locate operations when an
	// object carries no .SUNW_ctf/.ctf section.
	ErrNoCTF = errors.New("proc: no CTF data for object")
)
