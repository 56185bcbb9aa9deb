// Package symtab parses the Circom .sym symbol table: a CSV-like text
// format mapping signal names to wire indices, used to resolve named
// inputs in internal/mapper to the canonical wire order a compiled
// R1CS expects.
package symtab

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/flyinglimao/go-wkem/internal/wkemerr"
)

// Table maps input-facing signal names (the "main."-prefixed entries,
// with that prefix stripped) to their wire index.
type Table struct {
	WireOf map[string]int
}

// Parse reads a .sym file. Each line has the form
//
//	label_id,wire_id,component_id,signal_name
//
// Entries with wire_id == -1 are witness-only labels with no assigned
// wire and are skipped. Only signal names under the top-level "main"
// component are retained, with the "main." prefix stripped, since
// those are the only names a caller can supply as named inputs.
func Parse(data []byte) (*Table, error) {
	t := &Table{WireOf: make(map[string]int)}

	sc := bufio.NewScanner(strings.NewReader(string(data)))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ",", 4)
		if len(fields) != 4 {
			return nil, wkemerr.New(wkemerr.KindInputFormat, wkemerr.CodeBadFrame, "malformed .sym line "+itoa(lineNo))
		}

		wireID, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeBadFrame, "non-integer wire_id at line "+itoa(lineNo), err)
		}
		if wireID == -1 {
			continue
		}

		name := strings.TrimSpace(fields[3])
		const prefix = "main."
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		t.WireOf[strings.TrimPrefix(name, prefix)] = wireID
	}
	if err := sc.Err(); err != nil {
		return nil, wkemerr.Wrap(wkemerr.KindInputFormat, wkemerr.CodeBadFrame, "scanning .sym file", err)
	}

	return t, nil
}

// Lookup returns the wire index for a named input, or false if the
// table has no such entry.
func (t *Table) Lookup(name string) (int, bool) {
	idx, ok := t.WireOf[name]
	return idx, ok
}

func itoa(n int) string { return strconv.Itoa(n) }
