// Package circuit implements the constraint-system abstraction: wire
// allocation, constraint accumulation over explicit sparse linear
// combinations, satisfaction checking, and matrix export.
//
// Linear combinations are owned sparse vectors of (wire-index,
// coefficient) pairs, the same Factor/LinearCombination shapes a parsed
// R1CS file already uses (internal/r1cs). A Constraint registered here
// never closes over a cloned wire map; it takes its three
// LinearCombinations by value.
package circuit

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/flyinglimao/go-wkem/internal/r1cs"
	"github.com/flyinglimao/go-wkem/internal/wkemerr"
)

// Factor and LinearCombination are aliases of the r1cs package's sparse-row
// types: a constraint built here and a constraint parsed from an r1cs file
// are the same shape, so an R1CS-backed Circuit can copy its rows verbatim.
type Factor = r1cs.Factor
type LinearCombination = r1cs.LinearCombination

// Var identifies an allocated wire.
type Var struct {
	index uint32
}

// Index returns the underlying wire index, with 0 reserved for the constant 1.
func (v Var) Index() uint32 { return v.index }

// One is the Var for the preallocated constant wire.
var One = Var{index: 0}

// System is the mutable constraint-system builder.
type System struct {
	nInstance   uint32 // count of allocated instance wires (excludes wire 0)
	nTotal      uint32 // total allocated wires, including wire 0
	witnessBase uint32 // first witness wire index once allocation of instance wires closes; 0 means "still open"

	instance    []fr.Element
	instanceSet []bool
	witness     []fr.Element
	witnessSet  []bool

	constraints []r1cs.Constraint
}

// New creates an empty system with wire 0 preallocated as the constant 1.
func New() *System {
	s := &System{nTotal: 1}
	return s
}

// NewInstance appends a new public wire. value may be nil when only the
// circuit shape (not an assignment) is needed, as in Encap.
func (s *System) NewInstance(value *fr.Element) (Var, error) {
	if s.witnessBase != 0 {
		return Var{}, wkemerr.New(wkemerr.KindAssignment, wkemerr.CodeSynthesisError, "instance wire allocated after witness wire")
	}
	idx := s.nTotal
	s.nTotal++
	s.nInstance++
	s.instance = append(s.instance, fr.Element{})
	set := value != nil
	if set {
		s.instance[len(s.instance)-1] = *value
	}
	s.instanceSet = append(s.instanceSet, set)
	return Var{index: idx}, nil
}

// NewWitness appends a new private wire. value may be nil, as in Encap where
// witness wires are never assigned.
func (s *System) NewWitness(value *fr.Element) Var {
	if s.witnessBase == 0 {
		s.witnessBase = s.nTotal
	}
	idx := s.nTotal
	s.nTotal++
	s.witness = append(s.witness, fr.Element{})
	set := value != nil
	if set {
		s.witness[len(s.witness)-1] = *value
	}
	s.witnessSet = append(s.witnessSet, set)
	return Var{index: idx}
}

// Enforce appends a constraint <A,z> * <B,z> = <C,z> given three linear
// combinations over already-allocated wires.
func (s *System) Enforce(a, b, c LinearCombination) {
	s.constraints = append(s.constraints, r1cs.Constraint{A: a, B: b, C: c})
}

// NWires returns m, the total number of allocated wires.
func (s *System) NWires() uint32 { return s.nTotal }

// NPublic returns l, the number of instance wires.
func (s *System) NPublic() uint32 { return s.nInstance }

// NConstraints returns n.
func (s *System) NConstraints() uint32 { return uint32(len(s.constraints)) }

// Matrices borrows the sparse constraint rows.
func (s *System) Matrices() []r1cs.Constraint { return s.constraints }

// Instance borrows the instance assignment a_1..a_l. Fails if any instance
// wire was allocated without a value.
func (s *System) Instance() ([]fr.Element, error) {
	for _, ok := range s.instanceSet {
		if !ok {
			return nil, wkemerr.New(wkemerr.KindAssignment, wkemerr.CodeAssignmentMissing, "instance wire unset")
		}
	}
	return s.instance, nil
}

// Witness borrows the witness assignment z_{l+1}..z_{m-1}. Fails if any
// witness wire was allocated without a value.
func (s *System) Witness() ([]fr.Element, error) {
	for _, ok := range s.witnessSet {
		if !ok {
			return nil, wkemerr.New(wkemerr.KindAssignment, wkemerr.CodeAssignmentMissing, "witness wire unset")
		}
	}
	return s.witness, nil
}

// FullAssignment returns z_0..z_{m-1} (1, instance, witness), failing if any
// wire lacks a value.
func (s *System) FullAssignment() ([]fr.Element, error) {
	inst, err := s.Instance()
	if err != nil {
		return nil, err
	}
	wit, err := s.Witness()
	if err != nil {
		return nil, err
	}
	z := make([]fr.Element, 0, s.nTotal)
	one := fr.One()
	z = append(z, one)
	z = append(z, inst...)
	z = append(z, wit...)
	return z, nil
}

// IsSatisfied requires every wire to carry a value and checks every
// constraint row A*B=C against it. On the first unsatisfied row it returns
// (false, row-index); the caller (Decap) turns that into the InvalidWitness
// error with a "constraint N unsatisfied" context.
func (s *System) IsSatisfied() (ok bool, failedRow int, err error) {
	z, err := s.FullAssignment()
	if err != nil {
		return false, -1, err
	}
	for j, con := range s.constraints {
		av := evalLC(con.A, z)
		bv := evalLC(con.B, z)
		cv := evalLC(con.C, z)
		var lhs fr.Element
		lhs.Mul(&av, &bv)
		if !lhs.Equal(&cv) {
			return false, j, nil
		}
	}
	return true, -1, nil
}

func evalLC(lc LinearCombination, z []fr.Element) fr.Element {
	var acc fr.Element
	for _, f := range lc {
		var term fr.Element
		term.Mul(&f.Coef, &z[f.Wire])
		acc.Add(&acc, &term)
	}
	return acc
}

// Circuit is anything that, given an empty builder, fills it: native
// in-memory circuits used in tests, and R1CS-backed circuits whose
// constraints are copied verbatim from a parsed R1CS file. The WKEM core
// depends only on this capability, never on a concrete circuit type.
type Circuit interface {
	Fill(s *System) error
}
