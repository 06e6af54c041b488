// Package objcov decodes the coverage-instrumentation sections LLVM
// embeds in an object file: covmap's filename lists, covfun's per-function
// region and expression tables, and the optional prf_data/prf_cnts pair
// for objects that carry their own baked-in counters (spec §4.H).
package objcov

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/tmc/llvmprofparser/internal/bytesutil"
	"github.com/tmc/llvmprofparser/internal/objfile"
	"github.com/tmc/llvmprofparser/profile"
)

// encodingExpansionRegionBit marks an expansion region within a
// Zero-counter-tagged raw region header (spec §4.H).
const encodingExpansionRegionBit = 4

// patchExpressionKind records the Add/Subtract operator c's tag implies
// for the expression table slot it references, growing the table via
// ExpressionAt if that slot hasn't been reached yet. Per spec §3/§9, an
// expression's operator is carried only in the tag of whichever counter
// refers to it (2=Subtract, 3=Add), never in the expression's own table
// entry, so every decoded counter reference has to flow through here.
func patchExpressionKind(fr *profile.FunctionRecord, c profile.Counter) {
	if !c.IsExpression() {
		return
	}
	e := fr.ExpressionAt(c.ID)
	if c.Kind == profile.CounterAdd {
		e.Kind = profile.ExprAdd
	} else {
		e.Kind = profile.ExprSubtract
	}
}

// Read extracts every coverage section present in f.
func Read(f objfile.File) (*profile.CoverageSections, error) {
	order := f.ByteOrder()
	sections := &profile.CoverageSections{CovMap: make(map[uint64][]string)}

	if data, ok := f.Section(objfile.CovMapNames...); ok {
		if err := parseCovMap(data, order, sections); err != nil {
			return nil, fmt.Errorf("objcov: covmap: %w", err)
		}
	}
	if data, ok := f.Section(objfile.CovFunNames...); ok {
		funcs, err := parseCovFun(data, order)
		if err != nil {
			return nil, fmt.Errorf("objcov: covfun: %w", err)
		}
		sections.CovFun = funcs
	}
	if data, ok := f.Section(objfile.ProfDataNames...); ok {
		pdata, err := parseProfData(data, order)
		if err != nil {
			return nil, fmt.Errorf("objcov: prf_data: %w", err)
		}
		sections.ProfData = pdata
	}
	if data, ok := f.Section(objfile.ProfCntNames...); ok {
		counts, err := parseProfCnts(data, order)
		if err != nil {
			return nil, fmt.Errorf("objcov: prf_cnts: %w", err)
		}
		sections.ProfCnts = counts
	}
	return sections, nil
}

func readU32(r *bytesutil.Reader, order binary.ByteOrder) (uint32, error) {
	b, err := r.Take(4)
	if err != nil {
		return 0, err
	}
	return order.Uint32(b), nil
}

func readU64(r *bytesutil.Reader, order binary.ByteOrder) (uint64, error) {
	b, err := r.Take(8)
	if err != nil {
		return 0, err
	}
	return order.Uint64(b), nil
}

// parseCovMap decodes the covmap stream: a sequence of
// (0:i32, filename_data_len:i32, 0:i32, format_version:i32, blob) headers,
// each 8-byte aligned, keyed in the output by the 8-byte MD5 prefix of the
// filename blob.
func parseCovMap(data []byte, order binary.ByteOrder, out *profile.CoverageSections) error {
	r := bytesutil.NewReader(data)
	for r.Len() > 0 {
		headerStart := r.Pos()
		if _, err := readU32(r, order); err != nil { // reserved, always 0
			return err
		}
		filenameDataLen, err := readU32(r, order)
		if err != nil {
			return fmt.Errorf("filename_data_len: %w", err)
		}
		if _, err := readU32(r, order); err != nil { // reserved, always 0
			return err
		}
		formatVersion, err := readU32(r, order)
		if err != nil {
			return fmt.Errorf("format_version: %w", err)
		}
		blob, err := r.Take(int(filenameDataLen))
		if err != nil {
			return fmt.Errorf("filename blob: %w", err)
		}
		inner := bytesutil.NewReader(blob)
		paths, err := inner.PathList(uint64(formatVersion))
		if err != nil {
			return fmt.Errorf("path list: %w", err)
		}
		sum := md5.Sum(blob)
		key := order.Uint64(sum[:8])
		out.CovMap[key] = paths

		consumed := r.Pos() - headerStart
		pad := bytesutil.GetNumPaddingBytes(uint64(consumed))
		if _, err := r.Take(pad); err != nil {
			return fmt.Errorf("header padding: %w", err)
		}
	}
	return nil
}

// parseCovFun decodes the covfun stream into FunctionRecords.
func parseCovFun(data []byte, order binary.ByteOrder) ([]profile.FunctionRecord, error) {
	r := bytesutil.NewReader(data)
	var out []profile.FunctionRecord
	for r.Len() > 0 {
		fr, err := parseOneCovFun(r, order)
		if err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, nil
}

func parseOneCovFun(r *bytesutil.Reader, order binary.ByteOrder) (profile.FunctionRecord, error) {
	var fr profile.FunctionRecord
	recordStart := r.Pos()

	nameHash, err := readU64(r, order)
	if err != nil {
		return fr, fmt.Errorf("name_hash: %w", err)
	}
	dataLen, err := readU32(r, order)
	if err != nil {
		return fr, fmt.Errorf("data_len: %w", err)
	}
	fnHash, err := readU64(r, order)
	if err != nil {
		return fr, fmt.Errorf("fn_hash: %w", err)
	}
	filenamesRef, err := readU64(r, order)
	if err != nil {
		return fr, fmt.Errorf("filenames_ref: %w", err)
	}
	fr.NameHash = nameHash
	fr.DataLen = dataLen
	fr.FuncHash = fnHash
	fr.FilenamesRef = filenamesRef

	numFiles, err := r.ULEB128()
	if err != nil {
		return fr, fmt.Errorf("num_files: %w", err)
	}
	fileIndices := make([]uint64, numFiles)
	for i := range fileIndices {
		v, err := r.ULEB128()
		if err != nil {
			return fr, fmt.Errorf("file index %d: %w", i, err)
		}
		fileIndices[i] = v
	}

	exprLen, err := r.ULEB128()
	if err != nil {
		return fr, fmt.Errorf("expr_len: %w", err)
	}
	for i := uint64(0); i < exprLen; i++ {
		lhsRaw, err := r.ULEB128()
		if err != nil {
			return fr, fmt.Errorf("expr %d lhs: %w", i, err)
		}
		rhsRaw, err := r.ULEB128()
		if err != nil {
			return fr, fmt.Errorf("expr %d rhs: %w", i, err)
		}
		lhs := profile.DecodeCounter(lhsRaw)
		rhs := profile.DecodeCounter(rhsRaw)
		// Patch before growing this slot itself: patching may append to
		// fr.Expressions, which would invalidate a pointer held across it.
		patchExpressionKind(&fr, lhs)
		patchExpressionKind(&fr, rhs)
		e := fr.ExpressionAt(i)
		e.LHS = lhs
		e.RHS = rhs
	}

	for fileIdx, fileID := range fileIndices {
		regionsLen, err := r.ULEB128()
		if err != nil {
			return fr, fmt.Errorf("file %d regions_len: %w", fileIdx, err)
		}
		var lastLine uint32
		for i := uint64(0); i < regionsLen; i++ {
			reg, newLast, err := parseRegion(r, fileID, lastLine, &fr)
			if err != nil {
				return fr, fmt.Errorf("file %d region %d: %w", fileIdx, i, err)
			}
			lastLine = newLast
			fr.Regions = append(fr.Regions, reg)
		}
	}

	consumed := r.Pos() - recordStart
	pad := bytesutil.GetNumPaddingBytes(uint64(consumed))
	if _, err := r.Take(pad); err != nil {
		return fr, fmt.Errorf("record padding: %w", err)
	}

	return fr, nil
}

func parseRegion(r *bytesutil.Reader, fileID uint64, lastLine uint32, fr *profile.FunctionRecord) (profile.Region, uint32, error) {
	var reg profile.Region
	reg.FileID = fileID

	rawHeader, err := r.ULEB128()
	if err != nil {
		return reg, lastLine, fmt.Errorf("raw_header: %w", err)
	}
	primary := profile.DecodeCounter(rawHeader)
	patchExpressionKind(fr, primary)

	if primary.Kind == profile.CounterZero {
		shifted := rawHeader >> 3
		if rawHeader&encodingExpansionRegionBit != 0 {
			reg.Kind = profile.RegionExpansion
			reg.ExpandedFileID = shifted
			reg.Primary = profile.Zero
		} else {
			switch shifted {
			case 0:
				reg.Kind = profile.RegionCode
			case 1:
				reg.Kind = profile.RegionExpansion
			case 2:
				reg.Kind = profile.RegionSkipped
			case 3:
				reg.Kind = profile.RegionGap
			case 4:
				reg.Kind = profile.RegionBranch
			default:
				return reg, lastLine, fmt.Errorf("unknown region kind %d", shifted)
			}
			reg.Primary = profile.Zero
			if reg.Kind == profile.RegionBranch {
				lhsRaw, err := r.ULEB128()
				if err != nil {
					return reg, lastLine, fmt.Errorf("branch primary: %w", err)
				}
				rhsRaw, err := r.ULEB128()
				if err != nil {
					return reg, lastLine, fmt.Errorf("branch secondary: %w", err)
				}
				reg.Primary = profile.DecodeCounter(lhsRaw)
				reg.Secondary = profile.DecodeCounter(rhsRaw)
				patchExpressionKind(fr, reg.Primary)
				patchExpressionKind(fr, reg.Secondary)
			}
		}
	} else {
		reg.Kind = profile.RegionCode
		reg.Primary = primary
	}

	deltaLine, err := r.ULEB128()
	if err != nil {
		return reg, lastLine, fmt.Errorf("delta_line: %w", err)
	}
	columnStart, err := r.ULEB128()
	if err != nil {
		return reg, lastLine, fmt.Errorf("column_start: %w", err)
	}
	linesLen, err := r.ULEB128()
	if err != nil {
		return reg, lastLine, fmt.Errorf("lines_len: %w", err)
	}
	columnEnd, err := r.ULEB128()
	if err != nil {
		return reg, lastLine, fmt.Errorf("column_end: %w", err)
	}

	lineStart := lastLine + uint32(deltaLine)
	lineEnd := lineStart + uint32(linesLen)
	colStart, colEnd := profile.NormalizeColumns(uint32(columnStart), uint32(columnEnd))

	reg.Range = profile.SourceRange{
		LineStart:   lineStart,
		ColumnStart: colStart,
		LineEnd:     lineEnd,
		ColumnEnd:   colEnd,
	}

	return reg, lineEnd, nil
}

// parseProfData decodes the prf_data section: fixed 48-byte records
// (24 + 16 reserved + 4 counters_len + 4 reserved), spec §4.H.
func parseProfData(data []byte, order binary.ByteOrder) ([]profile.ProfileData, error) {
	const recordSize = 24 + 16 + 8
	if len(data)%recordSize != 0 {
		return nil, fmt.Errorf("prf_data length %d not a multiple of %d", len(data), recordSize)
	}
	r := bytesutil.NewReader(data)
	out := make([]profile.ProfileData, 0, len(data)/recordSize)
	for r.Len() > 0 {
		nameMD5, err := readU64(r, order)
		if err != nil {
			return nil, fmt.Errorf("name_md5: %w", err)
		}
		structuralHash, err := readU64(r, order)
		if err != nil {
			return nil, fmt.Errorf("structural_hash: %w", err)
		}
		if _, err := r.Take(8); err != nil { // counter_ptr, unused here
			return nil, fmt.Errorf("counter_ptr: %w", err)
		}
		if _, err := r.Take(16); err != nil { // reserved
			return nil, fmt.Errorf("reserved: %w", err)
		}
		countersLen, err := readU32(r, order)
		if err != nil {
			return nil, fmt.Errorf("counters_len: %w", err)
		}
		if _, err := r.Take(4); err != nil { // reserved
			return nil, fmt.Errorf("reserved tail: %w", err)
		}
		out = append(out, profile.ProfileData{
			NameMD5:        nameMD5,
			StructuralHash: structuralHash,
			CountersLen:    countersLen,
		})
	}
	return out, nil
}

// parseProfCnts decodes a packed array of u64 counters.
func parseProfCnts(data []byte, order binary.ByteOrder) ([]uint64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("prf_cnts length %d not a multiple of 8", len(data))
	}
	r := bytesutil.NewReader(data)
	out := make([]uint64, 0, len(data)/8)
	for r.Len() > 0 {
		v, err := readU64(r, order)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
