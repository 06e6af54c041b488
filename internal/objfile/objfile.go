// Package objfile wraps debug/elf, debug/macho, and debug/pe behind one
// narrow interface: byte order plus section lookup by either canonical
// ELF-style or COFF-style name, which is all the coverage-section reader
// needs from an object file (spec §6's "object-file reader" collaborator).
package objfile

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"fmt"
)

// File is the narrow view of an object file the coverage-section reader
// depends on.
type File interface {
	ByteOrder() binary.ByteOrder
	// Section returns the bytes of the first section matching any of
	// names, or ok=false if none are present.
	Section(names ...string) (data []byte, ok bool)
}

// Open sniffs data's container format and returns a File wrapping it.
func Open(data []byte) (File, error) {
	switch {
	case bytes.HasPrefix(data, []byte("\x7fELF")):
		f, err := elf.NewFile(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("objfile: elf: %w", err)
		}
		return &elfFile{f}, nil
	case bytes.HasPrefix(data, []byte("\xfe\xed\xfa")) || bytes.HasPrefix(data, []byte("\xcf\xfa\xed\xfe")) ||
		bytes.HasPrefix(data, []byte("\xca\xfe\xba\xbe")):
		f, err := macho.NewFile(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("objfile: macho: %w", err)
		}
		return &machoFile{f}, nil
	case bytes.HasPrefix(data, []byte("MZ")):
		f, err := pe.NewFile(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("objfile: pe: %w", err)
		}
		return &peFile{f}, nil
	default:
		return nil, fmt.Errorf("objfile: unrecognized container format")
	}
}

type elfFile struct{ f *elf.File }

func (e *elfFile) ByteOrder() binary.ByteOrder { return e.f.ByteOrder }

func (e *elfFile) Section(names ...string) ([]byte, bool) {
	for _, n := range names {
		if s := e.f.Section(n); s != nil {
			if b, err := s.Data(); err == nil {
				return b, true
			}
		}
	}
	return nil, false
}

type machoFile struct{ f *macho.File }

func (m *machoFile) ByteOrder() binary.ByteOrder { return m.f.ByteOrder }

func (m *machoFile) Section(names ...string) ([]byte, bool) {
	for _, n := range names {
		if s := m.f.Section(n); s != nil {
			if b, err := s.Data(); err == nil {
				return b, true
			}
		}
	}
	return nil, false
}

type peFile struct{ f *pe.File }

func (p *peFile) ByteOrder() binary.ByteOrder { return binary.LittleEndian }

func (p *peFile) Section(names ...string) ([]byte, bool) {
	for _, n := range names {
		if s := p.f.Section(n); s != nil {
			if b, err := s.Data(); err == nil {
				return b, true
			}
		}
	}
	return nil, false
}

// Canonical section-name pairs: index 0 is the ELF-style name, index 1
// the COFF/PE-style alternate (spec §4.H).
var (
	CovFunNames   = []string{"__llvm_covfun", ".lcovfun"}
	CovMapNames   = []string{"__llvm_covmap", ".lcovmap"}
	ProfCntNames  = []string{"__llvm_prf_cnts", ".lprfc"}
	ProfDataNames = []string{"__llvm_prf_data", ".lprfd"}
)
