package symtab

import "testing"

func TestParseSkipsUnassignedAndNonMainSignals(t *testing.T) {
	data := []byte(
		"0,0,0,main.one\n" +
			"1,1,0,main.a\n" +
			"2,-1,0,main.intermediate\n" +
			"3,2,1,sub.component.b\n" +
			"4,3,0,main.c[0]\n" +
			"5,4,0,main.c[1]\n",
	)

	tbl, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if wire, ok := tbl.Lookup("a"); !ok || wire != 1 {
		t.Fatalf("Lookup(a) = (%d, %v), want (1, true)", wire, ok)
	}
	if _, ok := tbl.Lookup("intermediate"); ok {
		t.Fatal("expected wire_id=-1 entries to be skipped")
	}
	if _, ok := tbl.Lookup("sub.component.b"); ok {
		t.Fatal("expected non-main-prefixed signals to be skipped")
	}
	if wire, ok := tbl.Lookup("c[0]"); !ok || wire != 3 {
		t.Fatalf("Lookup(c[0]) = (%d, %v), want (3, true)", wire, ok)
	}
	if wire, ok := tbl.Lookup("c[1]"); !ok || wire != 4 {
		t.Fatalf("Lookup(c[1]) = (%d, %v), want (4, true)", wire, ok)
	}
}

func TestParseRejectsMalformedLine(t *testing.T) {
	if _, err := Parse([]byte("not,enough,fields\n")); err == nil {
		t.Fatal("expected Parse to reject a line with too few fields")
	}
}

func TestParseRejectsNonIntegerWireID(t *testing.T) {
	if _, err := Parse([]byte("0,not-a-number,0,main.a\n")); err == nil {
		t.Fatal("expected Parse to reject a non-integer wire_id")
	}
}

func TestParseIgnoresBlankLines(t *testing.T) {
	data := []byte("0,0,0,main.one\n\n1,1,0,main.a\n\n")
	tbl, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := tbl.Lookup("a"); !ok {
		t.Fatal("expected blank lines to be skipped without breaking subsequent parsing")
	}
}
