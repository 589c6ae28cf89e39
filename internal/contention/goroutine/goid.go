// Copyright 2025 The monitortrace Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Goroutine ID extraction from runtime.Stack output.
//
// The header of every goroutine section in a stack dump has the form:
//
//	goroutine 123 [running]:
//
// ID parses the calling goroutine's header; parseAllIDs and Sections walk a
// full dump (runtime.Stack with all=true).

package goroutine

import (
	"bytes"
	"runtime"
	"strconv"
)

const headerPrefix = "goroutine "

// ID returns the calling goroutine's ID.
//
// Performance: ~1µs (runtime.Stack + header parse).
//
// Returns:
//   - int64: goroutine ID, or 0 if the header could not be parsed
func ID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseID(buf[:n])
}

// parseID extracts the ID from a "goroutine N [state]:" header.
//
// Returns 0 if buf does not start with a well-formed header.
func parseID(buf []byte) int64 {
	if !bytes.HasPrefix(buf, []byte(headerPrefix)) {
		return 0
	}
	buf = buf[len(headerPrefix):]

	end := 0
	for end < len(buf) && buf[end] >= '0' && buf[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}

	id, err := strconv.ParseInt(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// parseAllIDs returns the IDs of all goroutines in a full stack dump,
// in dump order.
func parseAllIDs(dump []byte) []int64 {
	var ids []int64
	for _, s := range Sections(dump) {
		ids = append(ids, s.ID)
	}
	return ids
}

// Section is one goroutine's part of a full stack dump.
type Section struct {
	ID int64

	// Body holds the frame lines following the header, without the
	// trailing blank line.
	Body []byte
}

// Sections splits a runtime.Stack(all=true) dump into per-goroutine sections.
//
// Sections are separated by a blank line; each starts with a header. Lines
// that are not part of a well-formed section are ignored.
func Sections(dump []byte) []Section {
	var out []Section

	for len(dump) > 0 {
		var block []byte
		if i := bytes.Index(dump, []byte("\n\n")); i >= 0 {
			block, dump = dump[:i], dump[i+2:]
		} else {
			block, dump = dump, nil
		}

		header, body, _ := bytes.Cut(block, []byte("\n"))
		id := parseID(header)
		if id == 0 {
			continue
		}
		out = append(out, Section{ID: id, Body: body})
	}
	return out
}

// FindSection returns the section of goroutine id in dump.
func FindSection(dump []byte, id int64) (Section, bool) {
	for _, s := range Sections(dump) {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}
