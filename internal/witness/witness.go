// Package witness implements the snarkjs "wtns" v2 binary container: an
// ordered vector of BN254 scalar field elements, indexed identically to the
// wire numbering of the matching r1cs file.
//
// Layout: magic "wtns", 4-byte version (must be 2), a
// 4-byte section count, then sections. The header section (type 1) carries
// the field byte-width n8 and the element count; the data section (type 2)
// is exactly n8*count bytes, each n8-byte chunk a little-endian field
// element. Unknown sections are skipped.
package witness

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/flyinglimao/go-wkem/internal/wkemerr"
)

const (
	magic = "wtns"

	sectionHeader = 1
	sectionData   = 2

	supportedVersion = 2
)

// Parse decodes a wtns v2 container into an ordered vector of scalars.
// out[0] is required by the format to equal 1; callers that need that
// invariant enforced should check it themselves.
func Parse(data []byte) ([]fr.Element, error) {
	r := bytes.NewReader(data)

	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil || string(gotMagic[:]) != magic {
		return nil, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeBadMagic, "wtns magic mismatch")
	}

	version, err := readU32(r)
	if err != nil {
		return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "version", err)
	}
	if version != supportedVersion {
		return nil, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeBadVersion, "unsupported wtns version")
	}

	nSections, err := readU32(r)
	if err != nil {
		return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "section count", err)
	}

	var n8 uint32
	var count uint32
	haveHeader := false
	var data8 []byte

	for i := uint32(0); i < nSections; i++ {
		typ, err := readU32(r)
		if err != nil {
			return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "section type", err)
		}
		size, err := readU64(r)
		if err != nil {
			return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "section size", err)
		}

		switch typ {
		case sectionHeader:
			n8, err = readU32(r)
			if err != nil {
				return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "n8", err)
			}
			prime := make([]byte, n8)
			if _, err := io.ReadFull(r, prime); err != nil {
				return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "prime", err)
			}
			count, err = readU32(r)
			if err != nil {
				return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "witness count", err)
			}
			haveHeader = true
		case sectionData:
			data8 = make([]byte, size)
			if _, err := io.ReadFull(r, data8); err != nil {
				return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "witness data", err)
			}
		default:
			if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
				return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "unknown section body", err)
			}
		}
	}

	if !haveHeader {
		return nil, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeSectionMissing, "Header")
	}
	if data8 == nil {
		return nil, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeSectionMissing, "Data")
	}
	if uint64(len(data8)) != uint64(n8)*uint64(count) {
		return nil, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeSizeMismatch, "witness data length")
	}

	out := make([]fr.Element, count)
	for i := range out {
		chunk := data8[int(n8)*i : int(n8)*(i+1)]
		setLittleEndian(&out[i], chunk)
	}
	return out, nil
}

// Emit rebuilds a wtns v2 container (Header, then Data) for the given
// elements, using fieldSize bytes per element.
func Emit(elements []fr.Element, fieldSize int) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	writeU32(&buf, supportedVersion)
	writeU32(&buf, 2)

	var headerBuf bytes.Buffer
	writeU32(&headerBuf, uint32(fieldSize))
	headerBuf.Write(make([]byte, fieldSize)) // prime field omitted, consumers resolve BN254 by convention
	writeU32(&headerBuf, uint32(len(elements)))
	writeSection(&buf, sectionHeader, headerBuf.Bytes())

	var dataBuf bytes.Buffer
	for _, e := range elements {
		dataBuf.Write(littleEndianBytes(e, fieldSize))
	}
	writeSection(&buf, sectionData, dataBuf.Bytes())

	return buf.Bytes()
}

func writeSection(buf *bytes.Buffer, typ uint32, body []byte) {
	writeU32(buf, typ)
	writeU64(buf, uint64(len(body)))
	buf.Write(body)
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

func setLittleEndian(e *fr.Element, le []byte) {
	be := make([]byte, len(le))
	for i, b := range le {
		be[len(le)-1-i] = b
	}
	e.SetBytes(be)
}

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
