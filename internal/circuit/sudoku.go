package circuit

import "github.com/consensys/gnark-crypto/ecc/bn254/fr"

// sudokuGroups lists the 27 lines of a 9x9 grid whose cells must be a
// permutation of 1..9: the 9 rows, then the 9 columns, then the 9 3x3
// boxes, each naming cell indices 0..80 in row-major order.
var sudokuGroups [27][9]int

// sudokuProductGroups names the groups, among the 27, that additionally
// carry an exact product check (9! = 362880) rather than just the sum and
// sum-of-squares checks every group gets. Checking all 27 groups this way
// would cost a 9-deep multiplication chain per group; three boxes sampled
// here keep the gadget's constraint count down while still having at
// least one fully-pinned (sum, sum of squares, product) group per box
// row and column of boxes.
var sudokuProductGroups = [3]int{18, 22, 26}

func init() {
	idx := 0
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			sudokuGroups[idx][c] = r*9 + c
		}
		idx++
	}
	for c := 0; c < 9; c++ {
		for r := 0; r < 9; r++ {
			sudokuGroups[idx][r] = r*9 + c
		}
		idx++
	}
	for b := 0; b < 9; b++ {
		br, bc := (b/3)*3, (b%3)*3
		k := 0
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				sudokuGroups[idx][k] = (br+i)*9 + (bc + j)
				k++
			}
		}
		idx++
	}
}

// SudokuSolution is a completed 9x9 grid fixture, row-major.
var SudokuSolution = [81]uint64{
	5, 3, 4, 6, 7, 8, 9, 1, 2,
	6, 7, 2, 1, 9, 5, 3, 4, 8,
	1, 9, 8, 3, 4, 2, 5, 6, 7,
	8, 5, 9, 7, 6, 1, 4, 2, 3,
	4, 2, 6, 8, 5, 3, 7, 9, 1,
	7, 1, 3, 9, 2, 4, 8, 5, 6,
	9, 6, 1, 5, 3, 7, 2, 8, 4,
	2, 8, 7, 4, 1, 9, 6, 3, 5,
	3, 4, 5, 2, 8, 6, 1, 7, 9,
}

// SudokuGrid converts SudokuSolution (or any other row-major 81-cell grid
// of small uints) to field elements.
func SudokuGrid(cells [81]uint64) [81]fr.Element {
	var out [81]fr.Element
	for i, v := range cells {
		out[i].SetUint64(v)
	}
	return out
}

// SudokuCircuit checks that a 9x9 grid is a valid completed Sudoku.
// All 81 cells are public, and the private wires are only the
// grid-uniqueness gadget's internal squares and products: each of the
// 27 rows, columns, and 3x3 boxes is checked against the fixed
// symmetric-function targets of a permutation of 1..9 (sum=45, sum of
// squares=285), and sudokuProductGroups additionally check the exact
// product (9!=362880). The sampled product check is weaker than a full
// per-group permutation proof; see sudokuProductGroups.
type SudokuCircuit struct {
	Grid *[81]fr.Element

	// WithWitness, when Grid is set, also computes and assigns the
	// private gadget wires (as Decap needs); Encap leaves it false so the
	// witness wires stay unassigned, per the Circuit contract.
	WithWitness bool

	// CorruptWitness, when WithWitness is set, assigns every private
	// gadget wire to zero instead of its correct value, for exercising
	// the "zeroing all private wires fails Decap" edge case without
	// touching the public grid.
	CorruptWitness bool
}

func (c *SudokuCircuit) Fill(s *System) error {
	var cellWires [81]Var
	for i := 0; i < 81; i++ {
		var val *fr.Element
		if c.Grid != nil {
			v := c.Grid[i]
			val = &v
		}
		w, err := s.NewInstance(val)
		if err != nil {
			return err
		}
		cellWires[i] = w
	}

	one := fr.One()
	haveVals := c.Grid != nil && c.WithWitness

	var sqWires [81]Var
	for i := 0; i < 81; i++ {
		var sqVal *fr.Element
		if haveVals {
			var sq fr.Element
			if !c.CorruptWitness {
				v := c.Grid[i]
				sq.Mul(&v, &v)
			}
			sqVal = &sq
		}
		sqWires[i] = s.NewWitness(sqVal)

		cellLC := LinearCombination{{Wire: cellWires[i].Index(), Coef: one}}
		s.Enforce(cellLC, cellLC, LinearCombination{{Wire: sqWires[i].Index(), Coef: one}})
	}

	var sum45, sum285 fr.Element
	sum45.SetUint64(45)
	sum285.SetUint64(285)
	oneLC := LinearCombination{{Wire: One.Index(), Coef: one}}

	for _, g := range sudokuGroups {
		sumLC := make(LinearCombination, 0, 9)
		sumSqLC := make(LinearCombination, 0, 9)
		for _, cellIdx := range g {
			sumLC = append(sumLC, Factor{Wire: cellWires[cellIdx].Index(), Coef: one})
			sumSqLC = append(sumSqLC, Factor{Wire: sqWires[cellIdx].Index(), Coef: one})
		}
		s.Enforce(sumLC, oneLC, LinearCombination{{Wire: One.Index(), Coef: sum45}})
		s.Enforce(sumSqLC, oneLC, LinearCombination{{Wire: One.Index(), Coef: sum285}})
	}

	var prod362880 fr.Element
	prod362880.SetUint64(362880)

	for _, gi := range sudokuProductGroups {
		g := sudokuGroups[gi]
		prevLC := LinearCombination{{Wire: cellWires[g[0]].Index(), Coef: one}}
		var prevVal fr.Element
		if haveVals {
			prevVal = c.Grid[g[0]]
		}
		for k := 1; k < 9; k++ {
			var pVal *fr.Element
			if haveVals {
				var p fr.Element
				if !c.CorruptWitness {
					p.Mul(&prevVal, &c.Grid[g[k]])
				}
				pVal = &p
				prevVal = p
			}
			pw := s.NewWitness(pVal)
			cellLC := LinearCombination{{Wire: cellWires[g[k]].Index(), Coef: one}}
			s.Enforce(prevLC, cellLC, LinearCombination{{Wire: pw.Index(), Coef: one}})
			prevLC = LinearCombination{{Wire: pw.Index(), Coef: one}}
		}
		s.Enforce(prevLC, oneLC, LinearCombination{{Wire: One.Index(), Coef: prod362880}})
	}

	return nil
}
