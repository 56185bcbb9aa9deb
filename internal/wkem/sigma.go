package wkem

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/flyinglimao/go-wkem/internal/wkemerr"
)

// Serialize encodes sigma in the canonical wire format: compressed
// group elements concatenated in field order (alpha_G1,
// beta_G2, delta_G2, ru_query, rv_query, phi_query, h_query), each
// vector length-prefixed by a 4-byte little-endian count, followed by
// the length-prefixed public-input vector.
func (c *CRS) Serialize() []byte {
	var buf bytes.Buffer

	g1 := c.AlphaG1.Bytes()
	buf.Write(g1[:])
	g2 := c.BetaG2.Bytes()
	buf.Write(g2[:])
	g2 = c.DeltaG2.Bytes()
	buf.Write(g2[:])

	writeU32(&buf, uint32(len(c.RuQuery)))
	for _, p := range c.RuQuery {
		b := p.Bytes()
		buf.Write(b[:])
	}
	writeU32(&buf, uint32(len(c.RvQuery)))
	for _, p := range c.RvQuery {
		b := p.Bytes()
		buf.Write(b[:])
	}
	writeU32(&buf, uint32(len(c.PhiQuery)))
	for _, p := range c.PhiQuery {
		b := p.Bytes()
		buf.Write(b[:])
	}
	writeU32(&buf, uint32(len(c.HQuery)))
	for _, p := range c.HQuery {
		b := p.Bytes()
		buf.Write(b[:])
	}

	writeU32(&buf, uint32(len(c.PublicInputs)))
	for _, s := range c.PublicInputs {
		b := s.Marshal()
		buf.Write(b)
	}

	return buf.Bytes()
}

// Deserialize decodes a CRS previously produced by Serialize.
func Deserialize(data []byte) (*CRS, error) {
	r := bytes.NewReader(data)
	c := &CRS{}

	if err := readG1(r, &c.AlphaG1); err != nil {
		return nil, err
	}
	if err := readG2(r, &c.BetaG2); err != nil {
		return nil, err
	}
	if err := readG2(r, &c.DeltaG2); err != nil {
		return nil, err
	}

	nRu, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.RuQuery = make([]bn254.G1Affine, nRu)
	for i := range c.RuQuery {
		if err := readG1(r, &c.RuQuery[i]); err != nil {
			return nil, err
		}
	}

	nRv, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.RvQuery = make([]bn254.G2Affine, nRv)
	for i := range c.RvQuery {
		if err := readG2(r, &c.RvQuery[i]); err != nil {
			return nil, err
		}
	}

	nPhi, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.PhiQuery = make([]bn254.G1Affine, nPhi)
	for i := range c.PhiQuery {
		if err := readG1(r, &c.PhiQuery[i]); err != nil {
			return nil, err
		}
	}

	nH, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.HQuery = make([]bn254.G1Affine, nH)
	for i := range c.HQuery {
		if err := readG1(r, &c.HQuery[i]); err != nil {
			return nil, err
		}
	}

	nPub, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.PublicInputs = make([]fr.Element, nPub)
	buf := make([]byte, fr.Bytes)
	for i := range c.PublicInputs {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "sigma public input", err)
		}
		c.PublicInputs[i].SetBytes(buf)
	}

	return c, nil
}

// VerifyCiphertext reports whether sigma's public-input vector matches
// expected, exactly. It performs no pairing work; it is a cheap
// pre-check a caller can run before attempting Decap.
func VerifyCiphertext(sigma *CRS, expected []fr.Element) bool {
	if len(sigma.PublicInputs) != len(expected) {
		return false
	}
	for i := range expected {
		if !sigma.PublicInputs[i].Equal(&expected[i]) {
			return false
		}
	}
	return true
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "sigma count", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readG1(r io.Reader, p *bn254.G1Affine) error {
	var b [sizeG1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "G1 point", err)
	}
	if _, err := p.SetBytes(b[:]); err != nil {
		return wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeSerializationError, "G1 point decode", err)
	}
	return nil
}

func readG2(r io.Reader, p *bn254.G2Affine) error {
	var b [sizeG2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeTruncatedSection, "G2 point", err)
	}
	if _, err := p.SetBytes(b[:]); err != nil {
		return wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeSerializationError, "G2 point decode", err)
	}
	return nil
}

const (
	sizeG1 = 32
	sizeG2 = 64
)
