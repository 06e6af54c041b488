// Package textprof decodes LLVM's line-oriented ASCII instrumentation
// profile format (proftext), spec §4.D.
package textprof

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/tmc/llvmprofparser/internal/symtab"
	"github.com/tmc/llvmprofparser/profile"
)

// HasFormat reports whether data looks like a text profile: LLVM detects
// this by checking that the whole buffer is ASCII.
func HasFormat(data []byte) bool {
	for _, b := range data {
		if b > 0x7f {
			return false
		}
	}
	return true
}

const nameSep = '\x01'

var recognizedTags = map[string]bool{
	"ir": true, "fe": true, "csir": true,
	"entry_first": true, "not_entry_first": true,
}

// Parse decodes a text profile from data.
func Parse(data []byte) (*profile.Model, error) {
	m := profile.NewModel()
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lines := make([]string, 0, 64)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("textprof: scanning input: %w", err)
	}

	i := 0
	skipBlankAndComments := func() {
		for i < len(lines) {
			t := strings.TrimSpace(lines[i])
			if t == "" || strings.HasPrefix(t, "#") {
				i++
				continue
			}
			break
		}
	}

	isIR, isCSIR, isEntryFirst := false, false, false
	// Header lines (":tag") may appear in any order before the first
	// record; blank lines and comments are skipped anywhere among them.
	for {
		skipBlankAndComments()
		if i >= len(lines) || !strings.HasPrefix(strings.TrimSpace(lines[i]), ":") {
			break
		}
		tag := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[i]), ":")))
		i++
		if !recognizedTags[tag] {
			return nil, fmt.Errorf("textprof: unrecognized header tag %q", tag)
		}
		switch tag {
		case "ir", "not_entry_first":
			isIR = true
		case "csir":
			isIR = true
			isCSIR = true
		case "entry_first":
			isEntryFirst = true
		case "fe":
			// front-end level, no flags to set
		}
	}
	m.IsIR = isIR
	m.IsCSIR = isCSIR
	m.IsEntryFirst = isEntryFirst

	nextContentLine := func() (string, bool) {
		skipBlankAndComments()
		if i >= len(lines) {
			return "", false
		}
		l := lines[i]
		i++
		return l, true
	}

	for {
		skipBlankAndComments()
		if i >= len(lines) {
			break
		}
		name, ok := nextContentLine()
		if !ok {
			break
		}
		hashLine, ok := nextContentLine()
		if !ok {
			return nil, fmt.Errorf("textprof: record %q: missing function hash", name)
		}
		fnHash, err := parseHashLiteral(hashLine)
		if err != nil {
			return nil, fmt.Errorf("textprof: record %q: %w", name, err)
		}
		numLine, ok := nextContentLine()
		if !ok {
			return nil, fmt.Errorf("textprof: record %q: missing counter count", name)
		}
		numCounters, err := strconv.ParseUint(strings.TrimSpace(numLine), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("textprof: record %q: bad counter count: %w", name, err)
		}
		counts := make([]uint64, 0, numCounters)
		for c := uint64(0); c < numCounters; c++ {
			cl, ok := nextContentLine()
			if !ok {
				return nil, fmt.Errorf("textprof: record %q: truncated counts", name)
			}
			v, err := strconv.ParseUint(strings.TrimSpace(cl), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("textprof: record %q: bad count: %w", name, err)
			}
			counts = append(counts, v)
		}

		rec := profile.ProfileRecord{
			Name:        name,
			HasName:     true,
			FuncHash:    fnHash,
			HasFuncHash: true,
			Counts:      counts,
		}
		for _, part := range strings.Split(name, string(nameSep)) {
			if part != "" {
				rec.NameHash = m.Symtab.AddLE(part)
				rec.HasNameHash = true
			}
		}

		vp, err := maybeParseValueProfile(&i, lines, nextContentLine)
		if err != nil {
			return nil, fmt.Errorf("textprof: record %q: %w", name, err)
		}
		rec.ValueProfile = vp

		m.AddRecord(rec)
	}

	return m, nil
}

func parseHashLiteral(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

// maybeParseValueProfile reads the optional value-profile block following
// a record's counts: a kind count, then per kind a (kind_id, num_sites,
// [num_entries, entries]) sequence.
func maybeParseValueProfile(i *int, lines []string, next func() (string, bool)) (*profile.ValueProfileData, error) {
	save := *i
	kindsLine, ok := peekNonBlank(lines, save)
	if !ok {
		return nil, nil
	}
	numKinds, err := strconv.ParseUint(strings.TrimSpace(kindsLine), 10, 64)
	// A value-profile block's kind count is always 0, 1, or 2 (there are
	// only two ValueKinds); llvm-profdata's writer omits the block
	// entirely when there is nothing to profile, so a 0 here is never
	// observed in practice but is handled the same as absence. Anything
	// outside that range can't be a kind count, so it must be the next
	// record's name line.
	if err != nil || numKinds == 0 || numKinds > 2 {
		return nil, nil
	}
	// Commit to consuming the value-profile block now.
	if _, ok := next(); !ok {
		return nil, fmt.Errorf("missing value-profile kind count")
	}

	vp := &profile.ValueProfileData{}
	for k := uint64(0); k < numKinds; k++ {
		kindLine, ok := next()
		if !ok {
			return nil, fmt.Errorf("truncated value-profile kind header")
		}
		fields := strings.Fields(kindLine)
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed value-profile kind header %q", kindLine)
		}
		kindID, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed value-profile kind id: %w", err)
		}
		numSites, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed value-profile site count: %w", err)
		}
		sites := make([]profile.ValueSite, 0, numSites)
		for s := uint64(0); s < numSites; s++ {
			numEntriesLine, ok := next()
			if !ok {
				return nil, fmt.Errorf("truncated value-profile site")
			}
			numEntries, err := strconv.ParseUint(strings.TrimSpace(numEntriesLine), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed value-profile entry count: %w", err)
			}
			site := make(profile.ValueSite, 0, numEntries)
			for e := uint64(0); e < numEntries; e++ {
				entryLine, ok := next()
				if !ok {
					return nil, fmt.Errorf("truncated value-profile entry")
				}
				vd, err := parseValueEntry(profile.ValueKind(kindID), entryLine)
				if err != nil {
					return nil, err
				}
				site = append(site, vd)
			}
			sites = append(sites, site)
		}
		switch profile.ValueKind(kindID) {
		case profile.ValueIndirectCallTarget:
			vp.IndirectCallSites = sites
		case profile.ValueMemOpSize:
			vp.MemOpSizes = sites
		}
	}
	return vp, nil
}

func parseValueEntry(kind profile.ValueKind, line string) (profile.ValueData, error) {
	parts := strings.SplitN(strings.TrimSpace(line), ":", 2)
	if len(parts) != 2 {
		return profile.ValueData{}, fmt.Errorf("malformed value-profile entry %q", line)
	}
	count, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return profile.ValueData{}, fmt.Errorf("malformed value-profile count %q: %w", line, err)
	}
	switch kind {
	case profile.ValueIndirectCallTarget:
		name := parts[0]
		if name == "** External Symbol **" {
			return profile.ValueData{Value: 0, Count: count}, nil
		}
		return profile.ValueData{Value: symtab.Hash(name, binary.LittleEndian), Count: count}, nil
	default: // MemOpSize
		size, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return profile.ValueData{}, fmt.Errorf("malformed mem-op size %q: %w", line, err)
		}
		return profile.ValueData{Value: size, Count: count}, nil
	}
}

// peekNonBlank scans forward from idx skipping blank/comment lines and
// returns the first content line without consuming any input.
func peekNonBlank(lines []string, idx int) (string, bool) {
	for idx < len(lines) {
		t := strings.TrimSpace(lines[idx])
		if t == "" || strings.HasPrefix(t, "#") {
			idx++
			continue
		}
		return lines[idx], true
	}
	return "", false
}
