// Package indexedprof decodes LLVM's indexed instrumentation profile
// format (profdata), spec §4.F: the on-disk chained hash table keyed by
// function name, and the optional leading summary blocks.
package indexedprof

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/tmc/llvmprofparser/internal/bytesutil"
	"github.com/tmc/llvmprofparser/profile"
)

// Magic is the 8-byte little-endian indexed-profile magic.
const Magic uint64 = 0x81_69_66_6F_72_70_6C_FF

// HasFormat reports whether data begins with the indexed-profile magic.
func HasFormat(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	return binary.LittleEndian.Uint64(data[:8]) == Magic
}

// hashMD5 is the only valid hash_type on disk.
const hashMD5 = 0

type header struct {
	version                   uint64
	hashType                  uint64
	hashOffset                uint64
	memProfOffset             uint64
	binaryIDOffset            uint64
	temporaryProfTracesOffset uint64
}

// Parse decodes an indexed profile from data.
func Parse(data []byte) (*profile.Model, error) {
	if !HasFormat(data) {
		return nil, fmt.Errorf("indexedprof: bad magic")
	}
	r := bytesutil.NewReader(data)
	if _, err := r.Take(8); err != nil {
		return nil, fmt.Errorf("indexedprof: %w", err)
	}

	m := profile.NewModel()
	order := binary.LittleEndian

	h, err := parseHeader(r, order)
	if err != nil {
		return nil, fmt.Errorf("indexedprof: header: %w", err)
	}
	m.SetVersionField(h.version)
	if h.hashType != hashMD5 {
		return nil, fmt.Errorf("indexedprof: unsupported hash type %d", h.hashType)
	}

	if m.Version >= 4 {
		if _, err := parseSummary(r, order); err != nil {
			return nil, fmt.Errorf("indexedprof: summary: %w", err)
		}
		if m.IsCSIR {
			if _, err := parseSummary(r, order); err != nil {
				return nil, fmt.Errorf("indexedprof: csir summary: %w", err)
			}
		}
	}

	if err := r.SeekTo(int(h.hashOffset)); err != nil {
		return nil, fmt.Errorf("indexedprof: seeking to hash table: %w", err)
	}
	if err := parseHashTable(r, order, m); err != nil {
		return nil, fmt.Errorf("indexedprof: hash table: %w", err)
	}

	return m, nil
}

func readU64(r *bytesutil.Reader, order binary.ByteOrder) (uint64, error) {
	b, err := r.Take(8)
	if err != nil {
		return 0, err
	}
	return order.Uint64(b), nil
}

func parseHeader(r *bytesutil.Reader, order binary.ByteOrder) (header, error) {
	var h header
	var err error
	if h.version, err = readU64(r, order); err != nil {
		return h, err
	}
	if _, err = r.Take(8); err != nil { // reserved word
		return h, err
	}
	if h.hashType, err = readU64(r, order); err != nil {
		return h, err
	}
	if h.hashOffset, err = readU64(r, order); err != nil {
		return h, err
	}
	masked := h.version &^ 0xFF00_0000_0000_0000
	if masked >= 8 {
		if h.memProfOffset, err = readU64(r, order); err != nil {
			return h, err
		}
	}
	if masked >= 9 {
		if h.binaryIDOffset, err = readU64(r, order); err != nil {
			return h, err
		}
	}
	if masked >= 10 {
		if h.temporaryProfTracesOffset, err = readU64(r, order); err != nil {
			return h, err
		}
	}
	return h, nil
}

// summaryFields names the first six positional u64 values of a summary
// block; any further fields beyond n_fields are ignored, and any values
// not among these positions are likewise ignored (spec §4.F).
type summaryFields struct {
	TotalNumFunctions     uint64
	TotalNumBlocks        uint64
	MaxFunctionCount      uint64
	MaxBlockCount         uint64
	MaxInternalBlockCount uint64
	TotalBlockCount       uint64
}

func parseSummary(r *bytesutil.Reader, order binary.ByteOrder) (summaryFields, error) {
	var sf summaryFields
	nFields, err := readU64(r, order)
	if err != nil {
		return sf, fmt.Errorf("n_fields: %w", err)
	}
	nEntries, err := readU64(r, order)
	if err != nil {
		return sf, fmt.Errorf("n_entries: %w", err)
	}
	fields := make([]uint64, nFields)
	for i := range fields {
		v, err := readU64(r, order)
		if err != nil {
			return sf, fmt.Errorf("field %d: %w", i, err)
		}
		fields[i] = v
	}
	assign := func(i int, dst *uint64) {
		if i < len(fields) {
			*dst = fields[i]
		}
	}
	assign(0, &sf.TotalNumFunctions)
	assign(1, &sf.TotalNumBlocks)
	assign(2, &sf.MaxFunctionCount)
	assign(3, &sf.MaxBlockCount)
	assign(4, &sf.MaxInternalBlockCount)
	assign(5, &sf.TotalBlockCount)

	for i := uint64(0); i < nEntries; i++ {
		if _, err := readU64(r, order); err != nil { // cutoff
			return sf, fmt.Errorf("entry %d cutoff: %w", i, err)
		}
		if _, err := readU64(r, order); err != nil { // min_count
			return sf, fmt.Errorf("entry %d min_count: %w", i, err)
		}
		if _, err := readU64(r, order); err != nil { // num_counts
			return sf, fmt.Errorf("entry %d num_counts: %w", i, err)
		}
	}
	return sf, nil
}

// valueProfHeader is the trailing (u32, u32) pair following each per-fn
// counts vector in a hash-table value; full value-profile decoding is
// deferred (spec §9), so only its byte extent matters here.
const valueProfHeaderSize = 8

func parseHashTable(r *bytesutil.Reader, order binary.ByteOrder, m *profile.Model) error {
	numBuckets, err := readU64(r, order)
	if err != nil {
		return fmt.Errorf("num_buckets: %w", err)
	}
	numEntries, err := readU64(r, order)
	if err != nil {
		return fmt.Errorf("num_entries: %w", err)
	}
	_ = numBuckets // buckets are walked implicitly by draining the entry stream below

	for i := uint64(0); i < numEntries; i++ {
		if err := parseHashEntry(r, order, m); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

func parseHashEntry(r *bytesutil.Reader, order binary.ByteOrder, m *profile.Model) error {
	hash, err := readU64(r, order)
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	keyLen, err := readU64(r, order)
	if err != nil {
		return fmt.Errorf("key_len: %w", err)
	}
	dataLen, err := readU64(r, order)
	if err != nil {
		return fmt.Errorf("data_len: %w", err)
	}
	if dataLen%8 != 0 {
		return fmt.Errorf("data_len %d not a multiple of 8", dataLen)
	}
	keyBytes, err := r.Take(int(keyLen))
	if err != nil {
		return fmt.Errorf("key bytes: %w", err)
	}
	if !utf8.Valid(keyBytes) {
		return fmt.Errorf("key is not valid UTF-8")
	}
	name := string(keyBytes)
	m.Symtab.Add(name, order)

	valueStart := r.Pos()
	valueEnd := valueStart + int(dataLen)
	for r.Pos() < valueEnd {
		rec, err := parseValueRecord(r, order)
		if err != nil {
			return fmt.Errorf("value record: %w", err)
		}
		rec.Name = name
		rec.HasName = true
		rec.NameHash = hash
		rec.HasNameHash = true
		m.AddRecord(rec)
	}
	if r.Pos() != valueEnd {
		return fmt.Errorf("value bytes overran data_len")
	}
	return nil
}

func parseValueRecord(r *bytesutil.Reader, order binary.ByteOrder) (profile.ProfileRecord, error) {
	var rec profile.ProfileRecord
	fnHash, err := readU64(r, order)
	if err != nil {
		return rec, fmt.Errorf("fn_hash: %w", err)
	}
	countsLen, err := readU64(r, order)
	if err != nil {
		return rec, fmt.Errorf("counts_len: %w", err)
	}
	counts := make([]uint64, countsLen)
	for i := range counts {
		v, err := readU64(r, order)
		if err != nil {
			return rec, fmt.Errorf("count %d: %w", i, err)
		}
		counts[i] = v
	}
	if _, err := r.Take(valueProfHeaderSize); err != nil {
		return rec, fmt.Errorf("value prof header: %w", err)
	}
	rec.FuncHash = fnHash
	rec.HasFuncHash = true
	rec.Counts = counts
	return rec, nil
}
