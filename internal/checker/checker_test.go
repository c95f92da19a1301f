package checker

import (
	"strings"
	"testing"
)

func run(t *testing.T, name, output, answer string) Outcome {
	t.Helper()
	fn, err := Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", name, err)
	}
	out, err := fn(strings.NewReader(""), strings.NewReader(output), strings.NewReader(answer))
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	return out
}

func TestWcmpExactTokenMatch(t *testing.T) {
	if o := run(t, "wcmp", "1 2 3", "1 2 3"); o.NormalizedScore != 1 {
		t.Errorf("expected match, got %+v", o)
	}
	if o := run(t, "wcmp", "1 2 4", "1 2 3"); o.NormalizedScore != 0 {
		t.Errorf("expected mismatch, got %+v", o)
	}
}

func TestNcmpIgnoresWhitespaceDifferences(t *testing.T) {
	if o := run(t, "ncmp", "1  2\n3", "1 2 3"); o.NormalizedScore != 1 {
		t.Errorf("expected match ignoring whitespace, got %+v", o)
	}
}

func TestRcmp6WithinTolerance(t *testing.T) {
	if o := run(t, "rcmp6", "3.14159265", "3.14159300"); o.NormalizedScore != 1 {
		t.Errorf("expected match within tolerance, got %+v", o)
	}
	if o := run(t, "rcmp6", "3.1", "3.14159"); o.NormalizedScore != 0 {
		t.Errorf("expected mismatch outside tolerance, got %+v", o)
	}
}

func TestYesNoCaseInsensitive(t *testing.T) {
	if o := run(t, "yesno", "YES", "yes"); o.NormalizedScore != 1 {
		t.Errorf("expected case-insensitive match, got %+v", o)
	}
}

func TestHcmpBigIntegers(t *testing.T) {
	big1 := "123456789012345678901234567890"
	if o := run(t, "hcmp", big1, big1); o.NormalizedScore != 1 {
		t.Errorf("expected big int match, got %+v", o)
	}
}

func TestLcmpTrailingWhitespaceIgnored(t *testing.T) {
	if o := run(t, "lcmp", "hello \nworld\t\n", "hello\nworld\n"); o.NormalizedScore != 1 {
		t.Errorf("expected line match ignoring trailing whitespace, got %+v", o)
	}
}

func TestLookupUnknownChecker(t *testing.T) {
	if _, err := Lookup("does-not-exist"); err == nil {
		t.Fatal("expected error for unknown checker name")
	}
}

func TestUncmpIgnoresOrder(t *testing.T) {
	if o := run(t, "uncmp", "3 1 2", "1 2 3"); o.NormalizedScore != 1 {
		t.Errorf("expected multiset match regardless of order, got %+v", o)
	}
	if o := run(t, "uncmp", "1 2 2", "1 1 2"); o.NormalizedScore != 0 {
		t.Errorf("expected multiset mismatch, got %+v", o)
	}
}

func TestRncmpIgnoresOrderWithinTolerance(t *testing.T) {
	if o := run(t, "rncmp", "2.0 1.0000001", "1.0 2.0"); o.NormalizedScore != 1 {
		t.Errorf("expected real multiset match within tolerance, got %+v", o)
	}
	if o := run(t, "rncmp", "1.0 2.5", "1.0 2.0"); o.NormalizedScore != 0 {
		t.Errorf("expected real multiset mismatch, got %+v", o)
	}
}

func TestCaseicmpIgnoresCase(t *testing.T) {
	if o := run(t, "caseicmp", "Hello World", "hello world"); o.NormalizedScore != 1 {
		t.Errorf("expected case-insensitive match, got %+v", o)
	}
}

func TestDcmpWithinTightTolerance(t *testing.T) {
	if o := run(t, "dcmp", "1.000000001", "1.000000002"); o.NormalizedScore != 1 {
		t.Errorf("expected match within tolerance, got %+v", o)
	}
	if o := run(t, "dcmp", "1.01", "1.0"); o.NormalizedScore != 0 {
		t.Errorf("expected mismatch outside tolerance, got %+v", o)
	}
}

func TestAcmpExactIntegerArray(t *testing.T) {
	if o := run(t, "acmp", "1 2 3", "1 2 3"); o.NormalizedScore != 1 {
		t.Errorf("expected match, got %+v", o)
	}
	if o := run(t, "acmp", "1 3 2", "1 2 3"); o.NormalizedScore != 0 {
		t.Errorf("expected order-sensitive mismatch, got %+v", o)
	}
}
