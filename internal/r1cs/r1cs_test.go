package r1cs

import (
	"bytes"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

func identityFile() *File {
	one := fr.One()
	return &File{
		Header: Header{
			FieldSize:    32,
			Prime:        make([]byte, 32),
			NWires:       3,
			NPubOut:      0,
			NPubIn:       1,
			NPrvIn:       0,
			NLabels:      3,
			NConstraints: 1,
		},
		Constraints: []Constraint{{
			A: LinearCombination{{Wire: 2, Coef: one}},
			B: LinearCombination{{Wire: 0, Coef: one}},
			C: LinearCombination{{Wire: 1, Coef: one}},
		}},
		Wire2Label: []uint64{0, 1, 2},
	}
}

// multiFactorFile exercises a coefficient that isn't 1, multiple
// non-zero factors per linear combination, and more than one
// constraint row, so the byte-exact round-trip property is checked
// against more than the trivial identity shape.
func multiFactorFile() *File {
	var seven, three fr.Element
	seven.SetUint64(7)
	three.SetUint64(3)
	one := fr.One()

	return &File{
		Header: Header{
			FieldSize:    32,
			Prime:        make([]byte, 32),
			NWires:       5,
			NPubOut:      1,
			NPubIn:       1,
			NPrvIn:       0,
			NLabels:      5,
			NConstraints: 2,
		},
		Constraints: []Constraint{
			{
				A: LinearCombination{{Wire: 3, Coef: seven}, {Wire: 4, Coef: three}},
				B: LinearCombination{{Wire: 0, Coef: one}},
				C: LinearCombination{{Wire: 1, Coef: one}},
			},
			{
				A: LinearCombination{{Wire: 2, Coef: one}},
				B: LinearCombination{{Wire: 2, Coef: one}},
				C: LinearCombination{{Wire: 2, Coef: one}},
			},
		},
		Wire2Label: []uint64{0, 1, 2, 3, 4},
	}
}

func assertFilesEqual(t *testing.T, got, want *File) {
	t.Helper()
	if !headerFieldsEqual(got.Header, want.Header) {
		t.Fatalf("header mismatch: got %+v, want %+v", got.Header, want.Header)
	}
	if len(got.Constraints) != len(want.Constraints) {
		t.Fatalf("constraint count mismatch: got %d, want %d", len(got.Constraints), len(want.Constraints))
	}
	for j := range want.Constraints {
		assertLCEqual(t, j, "A", got.Constraints[j].A, want.Constraints[j].A)
		assertLCEqual(t, j, "B", got.Constraints[j].B, want.Constraints[j].B)
		assertLCEqual(t, j, "C", got.Constraints[j].C, want.Constraints[j].C)
	}
	if len(got.Wire2Label) != len(want.Wire2Label) {
		t.Fatalf("wire2label length mismatch: got %d, want %d", len(got.Wire2Label), len(want.Wire2Label))
	}
	for i := range want.Wire2Label {
		if got.Wire2Label[i] != want.Wire2Label[i] {
			t.Fatalf("wire2label[%d] mismatch: got %d, want %d", i, got.Wire2Label[i], want.Wire2Label[i])
		}
	}
}

func headerFieldsEqual(a, b Header) bool {
	return a.FieldSize == b.FieldSize && bytes.Equal(a.Prime, b.Prime) &&
		a.NWires == b.NWires && a.NPubOut == b.NPubOut && a.NPubIn == b.NPubIn &&
		a.NPrvIn == b.NPrvIn && a.NLabels == b.NLabels && a.NConstraints == b.NConstraints
}

func assertLCEqual(t *testing.T, row int, label string, got, want LinearCombination) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("constraint %d %s: factor count mismatch: got %d, want %d", row, label, len(got), len(want))
	}
	for i := range want {
		if got[i].Wire != want[i].Wire || !got[i].Coef.Equal(&want[i].Coef) {
			t.Fatalf("constraint %d %s factor %d mismatch: got %+v, want %+v", row, label, i, got[i], want[i])
		}
	}
}

func TestParseEmitRoundTripIdentity(t *testing.T) {
	f := identityFile()
	raw := Emit(f)

	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	assertFilesEqual(t, parsed, f)

	// Emitting the parsed file again must reproduce the same bytes,
	// since Emit always orders sections Header/Constraints/Wire2Label.
	raw2 := Emit(parsed)
	if !bytes.Equal(raw, raw2) {
		t.Fatal("Emit(Parse(Emit(f))) did not reproduce the original bytes")
	}
}

func TestParseEmitRoundTripMultiFactor(t *testing.T) {
	f := multiFactorFile()
	raw := Emit(f)

	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	assertFilesEqual(t, parsed, f)
}

func TestParseRejectsBadMagic(t *testing.T) {
	raw := Emit(identityFile())
	raw[0] = 'x'
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected Parse to reject a bad magic")
	}
}

func TestParseRejectsBadVersion(t *testing.T) {
	raw := Emit(identityFile())
	// version field follows the 4-byte magic
	raw[4] = 9
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected Parse to reject an unsupported version")
	}
}

func TestParseRejectsTruncatedSection(t *testing.T) {
	raw := Emit(identityFile())
	if _, err := Parse(raw[:len(raw)-4]); err == nil {
		t.Fatal("expected Parse to reject a truncated container")
	}
}

func TestParseWithoutWire2LabelAssumesIdentity(t *testing.T) {
	f := identityFile()
	f.Wire2Label = nil

	var buf bytes.Buffer
	buf.WriteString(magic)
	writeU32(&buf, supportedVersion)
	writeU32(&buf, 2)

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

	parsed, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []uint64{0, 1, 2}
	for i, w := range want {
		if parsed.Wire2Label[i] != w {
			t.Fatalf("wire2label[%d] = %d, want identity %d", i, parsed.Wire2Label[i], w)
		}
	}
}
