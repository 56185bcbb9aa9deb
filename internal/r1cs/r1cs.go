// Package r1cs implements the iden3 "r1cs" v1 binary container: parsing and
// emission of the header and sparse constraint matrices A, B, C over the
// BN254 scalar field.
//
// The container layout: magic "r1cs", a 4-byte
// version, a 4-byte section count, then sections each prefixed by a 4-byte
// type and an 8-byte length (both little-endian). Sections are scanned in
// two passes: first every (type, length, offset) triple is collected, then
// the Header and Constraints sections (and the optional wire-to-label
// section) are decoded from their recorded offsets.
package r1cs

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/flyinglimao/go-wkem/internal/wkemerr"
)

const (
	magic = "r1cs"

	sectionHeader      = 1
	sectionConstraints = 2
	sectionWire2Label  = 3

	supportedVersion = 1
)

// Header mirrors the iden3 r1cs Header section.
type Header struct {
	FieldSize    int    // fs: byte width of one field element
	Prime        []byte // fs bytes, little-endian
	NWires       uint32 // m
	NPubOut      uint32
	NPubIn       uint32
	NPrvIn       uint32
	NLabels      uint64
	NConstraints uint32 // n
}

// NPublic returns l = n_pub_out + n_pub_in, the number of instance wires.
func (h Header) NPublic() uint32 { return h.NPubOut + h.NPubIn }

// Factor is one non-zero entry of a linear combination: (wire index, coefficient).
type Factor struct {
	Wire uint32
	Coef fr.Element
}

// LinearCombination is a sparse row of a constraint matrix.
type LinearCombination []Factor

// Constraint is one row of the R1CS: <A,z> * <B,z> = <C,z>.
type Constraint struct {
	A, B, C LinearCombination
}

// File is a fully parsed r1cs container.
type File struct {
	Header      Header
	Constraints []Constraint
	Wire2Label  []uint64 // length NWires; identity if the section was absent
}

type sectionLoc struct {
	typ    uint32
	size   uint64
	offset int64
}

// Parse decodes a complete r1cs v1 container.
func Parse(data []byte) (*File, error) {
	r := bytes.NewReader(data)

	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil || string(gotMagic[:]) != magic {
		return nil, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeBadMagic, "r1cs magic mismatch")
	}

	version, err := readU32(r)
	if err != nil {
		return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "version", err)
	}
	if version != supportedVersion {
		return nil, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeBadVersion, "unsupported r1cs version")
	}

	nSections, err := readU32(r)
	if err != nil {
		return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "section count", err)
	}

	// Pass 1: collect (type, size, offset) for every section, skipping over
	// the payload bytes via seek.
	locs := make(map[uint32]sectionLoc, nSections)
	for i := uint32(0); i < nSections; i++ {
		typ, err := readU32(r)
		if err != nil {
			return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "section type", err)
		}
		size, err := readU64(r)
		if err != nil {
			return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "section size", err)
		}
		offset, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "section offset", err)
		}
		if _, exists := locs[typ]; exists {
			return nil, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeDuplicateSection, "repeated section type")
		}
		locs[typ] = sectionLoc{typ: typ, size: size, offset: offset}
		if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
			return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "section body", err)
		}
	}

	headerLoc, ok := locs[sectionHeader]
	if !ok {
		return nil, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeSectionMissing, "Header")
	}
	header, err := parseHeader(r, headerLoc)
	if err != nil {
		return nil, err
	}

	constraintsLoc, ok := locs[sectionConstraints]
	if !ok {
		return nil, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeSectionMissing, "Constraints")
	}
	constraints, err := parseConstraints(r, constraintsLoc, header)
	if err != nil {
		return nil, err
	}

	wire2label := make([]uint64, header.NWires)
	if loc, ok := locs[sectionWire2Label]; ok {
		if err := parseWire2Label(r, loc, wire2label); err != nil {
			return nil, err
		}
	} else {
		for i := range wire2label {
			wire2label[i] = uint64(i)
		}
	}

	return &File{Header: header, Constraints: constraints, Wire2Label: wire2label}, nil
}

func parseHeader(r *bytes.Reader, loc sectionLoc) (Header, error) {
	if _, err := r.Seek(loc.offset, io.SeekStart); err != nil {
		return Header{}, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "seek Header", err)
	}

	fs, err := readU32(r)
	if err != nil {
		return Header{}, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "field size", err)
	}
	if fs == 0 || fs > 128 {
		return Header{}, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeValueTooLarge, "field size out of range")
	}
	prime := make([]byte, fs)
	if _, err := io.ReadFull(r, prime); err != nil {
		return Header{}, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "prime", err)
	}

	nWires, err := readU32(r)
	if err != nil {
		return Header{}, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "n_wires", err)
	}
	nPubOut, err := readU32(r)
	if err != nil {
		return Header{}, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "n_pub_out", err)
	}
	nPubIn, err := readU32(r)
	if err != nil {
		return Header{}, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "n_pub_in", err)
	}
	nPrvIn, err := readU32(r)
	if err != nil {
		return Header{}, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "n_prv_in", err)
	}
	nLabels, err := readU64(r)
	if err != nil {
		return Header{}, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "n_labels", err)
	}
	nConstraints, err := readU32(r)
	if err != nil {
		return Header{}, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "n_constraints", err)
	}

	return Header{
		FieldSize:    int(fs),
		Prime:        prime,
		NWires:       nWires,
		NPubOut:      nPubOut,
		NPubIn:       nPubIn,
		NPrvIn:       nPrvIn,
		NLabels:      nLabels,
		NConstraints: nConstraints,
	}, nil
}

func parseConstraints(r *bytes.Reader, loc sectionLoc, h Header) ([]Constraint, error) {
	if _, err := r.Seek(loc.offset, io.SeekStart); err != nil {
		return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "seek Constraints", err)
	}

	out := make([]Constraint, h.NConstraints)
	for j := range out {
		a, err := parseLC(r, h.FieldSize)
		if err != nil {
			return nil, err
		}
		b, err := parseLC(r, h.FieldSize)
		if err != nil {
			return nil, err
		}
		c, err := parseLC(r, h.FieldSize)
		if err != nil {
			return nil, err
		}
		out[j] = Constraint{A: a, B: b, C: c}
	}
	return out, nil
}

func parseLC(r *bytes.Reader, fieldSize int) (LinearCombination, error) {
	count, err := readU32(r)
	if err != nil {
		return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "LC factor count", err)
	}
	lc := make(LinearCombination, count)
	buf := make([]byte, fieldSize)
	for i := range lc {
		wire, err := readU32(r)
		if err != nil {
			return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "LC wire id", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "LC coefficient", err)
		}
		var coef fr.Element
		setLittleEndian(&coef, buf)
		lc[i] = Factor{Wire: wire, Coef: coef}
	}
	return lc, nil
}

func parseWire2Label(r *bytes.Reader, loc sectionLoc, out []uint64) error {
	if _, err := r.Seek(loc.offset, io.SeekStart); err != nil {
		return wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "seek Wire2Label", err)
	}
	if loc.size != uint64(len(out))*8 {
		return wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeSizeMismatch, "wire2label section size")
	}
	for i := range out {
		v, err := readU64(r)
		if err != nil {
			return wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "wire2label entry", err)
		}
		out[i] = v
	}
	return nil
}

// Emit rebuilds the byte-for-byte r1cs v1 container for f (section order:
// Header, Constraints, Wire2Label).
func Emit(f *File) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	writeU32(&buf, supportedVersion)
	writeU32(&buf, 3)

	var headerBuf bytes.Buffer
	writeU32(&headerBuf, uint32(f.Header.FieldSize))
	headerBuf.Write(f.Header.Prime)
	writeU32(&headerBuf, f.Header.NWires)
	writeU32(&headerBuf, f.Header.NPubOut)
	writeU32(&headerBuf, f.Header.NPubIn)
	writeU32(&headerBuf, f.Header.NPrvIn)
	writeU64(&headerBuf, f.Header.NLabels)
	writeU32(&headerBuf, f.Header.NConstraints)
	writeSection(&buf, sectionHeader, headerBuf.Bytes())

	var consBuf bytes.Buffer
	for _, c := range f.Constraints {
		writeLC(&consBuf, f.Header.FieldSize, c.A)
		writeLC(&consBuf, f.Header.FieldSize, c.B)
		writeLC(&consBuf, f.Header.FieldSize, c.C)
	}
	writeSection(&buf, sectionConstraints, consBuf.Bytes())

	var w2lBuf bytes.Buffer
	for _, label := range f.Wire2Label {
		writeU64(&w2lBuf, label)
	}
	writeSection(&buf, sectionWire2Label, w2lBuf.Bytes())

	return buf.Bytes()
}

func writeSection(buf *bytes.Buffer, typ uint32, body []byte) {
	writeU32(buf, typ)
	writeU64(buf, uint64(len(body)))
	buf.Write(body)
}

func writeLC(buf *bytes.Buffer, fieldSize int, lc LinearCombination) {
	writeU32(buf, uint32(len(lc)))
	for _, f := range lc {
		writeU32(buf, f.Wire)
		buf.Write(littleEndianBytes(f.Coef, fieldSize))
	}
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// setLittleEndian interprets le as a little-endian field element, matching
// the wire format of every section in this container (gnark-crypto's
// fr.Element.SetBytes expects big-endian).
func setLittleEndian(e *fr.Element, le []byte) {
	be := make([]byte, len(le))
	for i, b := range le {
		be[len(le)-1-i] = b
	}
	e.SetBytes(be)
}

// littleEndianBytes serializes e as fieldSize little-endian bytes.
func littleEndianBytes(e fr.Element, fieldSize int) []byte {
	var i big.Int
	e.BigInt(&i)
	be := i.Bytes()

	padded := make([]byte, fieldSize)
	copy(padded[fieldSize-len(be):], be)

	le := make([]byte, fieldSize)
	for idx, b := range padded {
		le[fieldSize-1-idx] = b
	}
	return le
}
