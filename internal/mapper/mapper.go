// Package mapper turns a named input map — the JSON shape snarkjs and
// circom both accept, e.g. {"a": 3, "b": [1, 2, 3]} — into the
// canonical wire-ordered instance vector a compiled R1CS expects.
//
// The symbol-table path is normative: every named input is resolved
// through a circuit's .sym table to its exact wire index, so field
// order in the caller's map never matters. Without a table, Flatten
// falls back to a sorted-key depth-first walk, the test-harness path;
// it yields the right wire order only when the circuit's public wires
// follow that same sorted order, as this module's own test circuits
// do. Flatten does not check this, and wkemctl uses it for any circuit
// whenever no .sym table is given.
package mapper

import (
	"math/big"
	"sort"
	"strconv"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/flyinglimao/go-wkem/internal/symtab"
	"github.com/flyinglimao/go-wkem/internal/wkemerr"
)

// MapWithTable resolves inputs through table and returns a wire-ordered
// instance vector of length nPublic (wires 1..nPublic, wire 0 being
// the implicit constant excluded from the vector). Wires the inputs
// never mention are left at zero.
func MapWithTable(inputs map[string]any, table *symtab.Table, nPublic int) ([]fr.Element, error) {
	out := make([]fr.Element, nPublic)

	for name, val := range inputs {
		if err := assignNamed(out, table, name, val); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func assignNamed(out []fr.Element, table *symtab.Table, name string, val any) error {
	switch v := val.(type) {
	case []any:
		for i, elem := range v {
			indexed := name + "[" + strconv.Itoa(i) + "]"
			if err := assignNamed(out, table, indexed, elem); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		// Nested objects carry no wire assignment of their own; circom
		// flattens structs into individually named signals that the
		// caller is expected to address directly.
		return nil
	default:
		wire, ok := table.Lookup(name)
		if !ok {
			return wkemerr.New(wkemerr.KindAssignment, wkemerr.CodeAssignmentMissing, "no wire for input "+name)
		}
		if wire < 1 || wire > len(out) {
			return wkemerr.New(wkemerr.KindAssignment, wkemerr.CodeAssignmentMissing, "wire out of instance range for "+name)
		}
		elem, err := scalarOf(v)
		if err != nil {
			return err
		}
		out[wire-1] = elem
		return nil
	}
}

// Flatten is the symbol-table-free fallback: a sorted-key depth-first
// walk over inputs, assigning scalars to sequential wire positions
// 1..nPublic in the order encountered. It is only a legitimate
// substitute for MapWithTable when the caller controls both sides of
// the wire-order convention (the module's own test circuits).
func Flatten(inputs map[string]any, nPublic int) ([]fr.Element, error) {
	out := make([]fr.Element, 0, nPublic)

	names := make([]string, 0, len(inputs))
	for k := range inputs {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, name := range names {
		vals, err := flattenValue(inputs[name])
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}

	if len(out) != nPublic {
		return nil, wkemerr.New(wkemerr.KindAssignment, wkemerr.CodeAssignmentMissing, "flattened input count does not match public wire count")
	}
	return out, nil
}

func flattenValue(val any) ([]fr.Element, error) {
	switch v := val.(type) {
	case []any:
		var out []fr.Element
		for _, elem := range v {
			sub, err := flattenValue(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	case map[string]any:
		return nil, nil
	default:
		elem, err := scalarOf(v)
		if err != nil {
			return nil, err
		}
		return []fr.Element{elem}, nil
	}
}

// scalarOf converts one recognized leaf value to a field element: an
// integer literal, a decimal string, a boolean
// (true/false -> 1/0), or null (-> 0). Negative integers are rejected
// since the field has no native signed representation the caller can
// rely on without specifying a reduction convention.
func scalarOf(val any) (fr.Element, error) {
	var elem fr.Element
	switch v := val.(type) {
	case nil:
		return elem, nil
	case bool:
		if v {
			elem.SetOne()
		}
		return elem, nil
	case float64:
		if v < 0 {
			return elem, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeUnsupportedValue, "negative numeric input")
		}
		elem.SetUint64(uint64(v))
		return elem, nil
	case string:
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return elem, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeUnsupportedValue, "non-decimal string input "+v)
		}
		if n.Sign() < 0 {
			return elem, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeUnsupportedValue, "negative numeric input "+v)
		}
		elem.SetBigInt(n)
		return elem, nil
	default:
		return elem, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeUnsupportedValue, "unrecognized input value shape")
	}
}
