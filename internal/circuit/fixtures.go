package circuit

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// IdentityCircuit is the minimal end-to-end fixture: one public wire
// bound to one private wire by a single constraint secret*1 = public.
type IdentityCircuit struct {
	Public *fr.Element
	Secret *fr.Element
}

func (c *IdentityCircuit) Fill(s *System) error {
	pub, err := s.NewInstance(c.Public)
	if err != nil {
		return err
	}
	secret := s.NewWitness(c.Secret)

	one := fr.One()
	s.Enforce(
		LinearCombination{{Wire: secret.Index(), Coef: one}},
		LinearCombination{{Wire: One.Index(), Coef: one}},
		LinearCombination{{Wire: pub.Index(), Coef: one}},
	)
	return nil
}

// QuadraticCircuit enforces secret*secret = public, a one-multiplication
// circuit exercising a non-trivial A and B simultaneously.
type QuadraticCircuit struct {
	Public *fr.Element
	Secret *fr.Element
}

func (c *QuadraticCircuit) Fill(s *System) error {
	pub, err := s.NewInstance(c.Public)
	if err != nil {
		return err
	}
	secret := s.NewWitness(c.Secret)

	secretLC := LinearCombination{{Wire: secret.Index(), Coef: fr.One()}}
	s.Enforce(secretLC, secretLC, LinearCombination{{Wire: pub.Index(), Coef: fr.One()}})
	return nil
}

// MiMCRounds is the round count of the LongsightF322p3 Feistel
// permutation used by MiMCCircuit.
const MiMCRounds = 322

// mimcConstants holds the MiMCRounds round constants of the fixture
// permutation. They are not a published MiMC parameter set: they are
// derived once, deterministically, by chaining gnark-crypto's native MiMC
// hash over a fixed seed and a round counter, so the same 322 values come
// out on every run.
var mimcConstants = generateMiMCConstants()

func generateMiMCConstants() [MiMCRounds]fr.Element {
	var out [MiMCRounds]fr.Element
	h := mimc.NewMiMC()

	// MiMC's Write accepts only canonical field-element blocks, so the
	// seed string and round counter both go through fr.Element first.
	var seed fr.Element
	seed.SetBytes([]byte("go-wkem/mimc-fixture-round-constants"))
	for i := range out {
		h.Reset()
		h.Write(seed.Marshal())
		var idx fr.Element
		idx.SetUint64(uint64(i))
		h.Write(idx.Marshal())
		sum := h.Sum(nil)
		out[i].SetBytes(sum)
		seed.SetBytes(sum)
	}
	return out
}

// MiMCPermute computes the LongsightF322p3-style Feistel permutation used by
// MiMCCircuit natively: at each round, xL, xR := xR + (xL+C_i)^3, xL. The
// final xL is the digest.
func MiMCPermute(xl, xr fr.Element) fr.Element {
	for i := 0; i < MiMCRounds; i++ {
		var t fr.Element
		t.Add(&xl, &mimcConstants[i])
		var cube fr.Element
		cube.Mul(&t, &t)
		cube.Mul(&cube, &t)
		var newXl fr.Element
		newXl.Add(&xr, &cube)
		xr = xl
		xl = newXl
	}
	return xl
}

// MiMCCircuit proves knowledge of a preimage (xL, xR) of a digest
// computed by the 322-round LongsightF322p3 Feistel permutation, with
// xL and xR as private witnesses and the digest bound to the public
// instance wire by a closing equality constraint. The strict rank-1
// A*B=C shape cannot encode a cubing gate in one row, so each round
// costs two multiplication constraints (square, then cube).
type MiMCCircuit struct {
	Xl     *fr.Element
	Xr     *fr.Element
	Digest *fr.Element
}

func (c *MiMCCircuit) Fill(s *System) error {
	digest, err := s.NewInstance(c.Digest)
	if err != nil {
		return err
	}

	haveVals := c.Xl != nil && c.Xr != nil
	var curXl, curXr fr.Element
	if haveVals {
		curXl, curXr = *c.Xl, *c.Xr
	}

	xlWire := s.NewWitness(c.Xl)
	xrWire := s.NewWitness(c.Xr)

	one := fr.One()
	xlLC := LinearCombination{{Wire: xlWire.Index(), Coef: one}}
	xrLC := LinearCombination{{Wire: xrWire.Index(), Coef: one}}

	for i := 0; i < MiMCRounds; i++ {
		aLC := make(LinearCombination, len(xlLC), len(xlLC)+1)
		copy(aLC, xlLC)
		aLC = append(aLC, Factor{Wire: One.Index(), Coef: mimcConstants[i]})

		var tmpVal, cubeVal fr.Element
		if haveVals {
			var t fr.Element
			t.Add(&curXl, &mimcConstants[i])
			tmpVal.Mul(&t, &t)
			cubeVal.Mul(&tmpVal, &t)
		}
		tmpWire := s.NewWitness(ptrIf(haveVals, tmpVal))
		cubeWire := s.NewWitness(ptrIf(haveVals, cubeVal))

		tmpLC := LinearCombination{{Wire: tmpWire.Index(), Coef: one}}
		cubeLC := LinearCombination{{Wire: cubeWire.Index(), Coef: one}}
		s.Enforce(aLC, aLC, tmpLC)
		s.Enforce(tmpLC, aLC, cubeLC)

		newXlLC := make(LinearCombination, len(xrLC), len(xrLC)+1)
		copy(newXlLC, xrLC)
		newXlLC = append(newXlLC, Factor{Wire: cubeWire.Index(), Coef: one})

		xlLC, xrLC = newXlLC, xlLC
		if haveVals {
			var newXl fr.Element
			newXl.Add(&curXr, &cubeVal)
			curXr, curXl = curXl, newXl
		}
	}

	s.Enforce(xlLC, LinearCombination{{Wire: One.Index(), Coef: one}}, LinearCombination{{Wire: digest.Index(), Coef: one}})
	return nil
}

func ptrIf(have bool, v fr.Element) *fr.Element {
	if !have {
		return nil
	}
	return &v
}
