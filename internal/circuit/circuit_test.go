package circuit

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

func TestIdentitySatisfied(t *testing.T) {
	var secret fr.Element
	secret.SetUint64(42)
	pub := secret

	sys := New()
	if err := (&IdentityCircuit{Public: &pub, Secret: &secret}).Fill(sys); err != nil {
		t.Fatalf("fill: %v", err)
	}
	ok, _, err := sys.IsSatisfied()
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if !ok {
		t.Fatal("expected identity circuit to be satisfied")
	}
}

func TestIdentityUnsatisfied(t *testing.T) {
	var secret, pub fr.Element
	secret.SetUint64(42)
	pub.SetUint64(43)

	sys := New()
	if err := (&IdentityCircuit{Public: &pub, Secret: &secret}).Fill(sys); err != nil {
		t.Fatalf("fill: %v", err)
	}
	ok, row, err := sys.IsSatisfied()
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched identity circuit to be unsatisfied")
	}
	if row != 0 {
		t.Fatalf("expected failure at row 0, got %d", row)
	}
}

func TestQuadraticSatisfied(t *testing.T) {
	var secret, pub fr.Element
	secret.SetUint64(7)
	pub.Mul(&secret, &secret)

	sys := New()
	if err := (&QuadraticCircuit{Public: &pub, Secret: &secret}).Fill(sys); err != nil {
		t.Fatalf("fill: %v", err)
	}
	ok, _, err := sys.IsSatisfied()
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if !ok {
		t.Fatal("expected quadratic circuit to be satisfied")
	}
}

func TestMiMCCircuitSatisfied(t *testing.T) {
	var xl, xr fr.Element
	xl.SetUint64(42)
	xr.SetUint64(99)
	digest := MiMCPermute(xl, xr)

	sys := New()
	if err := (&MiMCCircuit{Xl: &xl, Xr: &xr, Digest: &digest}).Fill(sys); err != nil {
		t.Fatalf("fill: %v", err)
	}
	ok, _, err := sys.IsSatisfied()
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if !ok {
		t.Fatal("expected MiMC fixture circuit to be satisfied")
	}
	if want := uint32(2*MiMCRounds + 1); sys.NConstraints() != want {
		t.Fatalf("expected %d constraints, got %d", want, sys.NConstraints())
	}
}

func TestMiMCCircuitRejectsWrongDigest(t *testing.T) {
	var xl, xr, wrongDigest fr.Element
	xl.SetUint64(42)
	xr.SetUint64(99)
	wrongDigest.SetUint64(123)

	sys := New()
	if err := (&MiMCCircuit{Xl: &xl, Xr: &xr, Digest: &wrongDigest}).Fill(sys); err != nil {
		t.Fatalf("fill: %v", err)
	}
	ok, _, err := sys.IsSatisfied()
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if ok {
		t.Fatal("expected MiMC fixture circuit to reject a wrong digest")
	}
}

func TestMiMCCircuitRejectsSwappedInputs(t *testing.T) {
	var xl, xr fr.Element
	xl.SetUint64(42)
	xr.SetUint64(99)
	digest := MiMCPermute(xl, xr)

	// (xR, xL) generally does not produce the same digest as (xL, xR).
	sys := New()
	if err := (&MiMCCircuit{Xl: &xr, Xr: &xl, Digest: &digest}).Fill(sys); err != nil {
		t.Fatalf("fill: %v", err)
	}
	ok, _, err := sys.IsSatisfied()
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if ok {
		t.Fatal("expected swapped (xL, xR) to fail to reproduce the digest")
	}
}

func TestSudokuCircuitSatisfied(t *testing.T) {
	grid := SudokuGrid(SudokuSolution)

	sys := New()
	if err := (&SudokuCircuit{Grid: &grid, WithWitness: true}).Fill(sys); err != nil {
		t.Fatalf("fill: %v", err)
	}
	ok, row, err := sys.IsSatisfied()
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if !ok {
		t.Fatalf("expected completed Sudoku grid to be satisfied, failed at row %d", row)
	}
	if sys.NConstraints() != 162 {
		t.Fatalf("expected 162 constraints, got %d", sys.NConstraints())
	}
	if sys.NWires() != 187 {
		t.Fatalf("expected 187 wires, got %d", sys.NWires())
	}
	if sys.NPublic() != 81 {
		t.Fatalf("expected 81 public wires, got %d", sys.NPublic())
	}
}

func TestSudokuCircuitRejectsInvalidGrid(t *testing.T) {
	grid := SudokuGrid(SudokuSolution)
	// Duplicate the first row's first value into its second cell; row 0 is
	// no longer a permutation of 1..9.
	grid[1] = grid[0]

	sys := New()
	if err := (&SudokuCircuit{Grid: &grid, WithWitness: true}).Fill(sys); err != nil {
		t.Fatalf("fill: %v", err)
	}
	ok, _, err := sys.IsSatisfied()
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if ok {
		t.Fatal("expected a grid with a duplicated row entry to be unsatisfied")
	}
}

func TestInstanceMissingError(t *testing.T) {
	sys := New()
	if _, err := sys.NewInstance(nil); err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	if _, err := sys.Instance(); err == nil {
		t.Fatal("expected error for unset instance wire")
	}
}

func TestWitnessAfterInstanceClosesAllocation(t *testing.T) {
	sys := New()
	var v fr.Element
	v.SetUint64(1)
	if _, err := sys.NewInstance(&v); err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	sys.NewWitness(&v)
	if _, err := sys.NewInstance(&v); err == nil {
		t.Fatal("expected error allocating instance wire after witness wire")
	}
}
