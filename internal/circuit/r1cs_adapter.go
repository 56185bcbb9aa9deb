package circuit

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/flyinglimao/go-wkem/internal/r1cs"
	"github.com/flyinglimao/go-wkem/internal/wkemerr"
)

// R1CSCircuit adapts a parsed r1cs.File into a Circuit: its constraint
// rows are copied verbatim, and wires are assigned either from a full
// witness vector (Decap) or from a public-input-only vector leaving
// private wires unset (Encap).
type R1CSCircuit struct {
	File *r1cs.File

	// Full, when non-nil, is the complete wire assignment z_0..z_{m-1}
	// (index 0 must equal 1) as parsed from a wtns file.
	Full []fr.Element

	// PublicInputs, used only when Full is nil, is the instance
	// assignment a_1..a_l; private wires are left unassigned.
	PublicInputs []fr.Element
}

func (rc *R1CSCircuit) Fill(s *System) error {
	h := rc.File.Header
	ell := h.NPublic()
	m := h.NWires

	if rc.Full != nil {
		if uint32(len(rc.Full)) != m {
			return wkemerr.New(wkemerr.KindAssignment, wkemerr.CodeSizeMismatch, "witness length does not match r1cs wire count")
		}
		for i := uint32(1); i <= ell; i++ {
			v := rc.Full[i]
			if _, err := s.NewInstance(&v); err != nil {
				return err
			}
		}
		for i := ell + 1; i < m; i++ {
			v := rc.Full[i]
			s.NewWitness(&v)
		}
	} else {
		if uint32(len(rc.PublicInputs)) != ell {
			return wkemerr.New(wkemerr.KindAssignment, wkemerr.CodeSizeMismatch, "public input length does not match r1cs instance count")
		}
		for i := range rc.PublicInputs {
			v := rc.PublicInputs[i]
			if _, err := s.NewInstance(&v); err != nil {
				return err
			}
		}
		for i := ell + 1; i < m; i++ {
			s.NewWitness(nil)
		}
	}

	for _, c := range rc.File.Constraints {
		s.Enforce(c.A, c.B, c.C)
	}
	return nil
}
