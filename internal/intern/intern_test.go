package intern

import "testing"

func TestInternDeduplicates(t *testing.T) {
	tb := New()
	a := tb.Intern("foo")
	b := tb.Intern("bar")
	c := tb.Intern("foo")
	if a != c {
		t.Errorf("Intern(%q) returned %d then %d, want same index", "foo", a, c)
	}
	if a == b {
		t.Errorf("distinct strings got the same index %d", a)
	}
	if got := tb.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestStringRoundTrip(t *testing.T) {
	tb := New()
	idx := tb.Intern("hello")
	if got := tb.String(idx); got != "hello" {
		t.Errorf("String(%d) = %q, want %q", idx, got, "hello")
	}
}

func TestLookup(t *testing.T) {
	tb := New()
	tb.Intern("present")
	if _, ok := tb.Lookup("missing"); ok {
		t.Error("Lookup found a string that was never interned")
	}
	if idx, ok := tb.Lookup("present"); !ok || tb.String(idx) != "present" {
		t.Error("Lookup failed to find an interned string")
	}
}

func TestSealPreventsFurtherIntern(t *testing.T) {
	tb := New()
	tb.Intern("a")
	tb.Seal()

	defer func() {
		if recover() == nil {
			t.Error("Intern after Seal did not panic")
		}
	}()
	tb.Intern("b")
}

func TestLookupAfterSeal(t *testing.T) {
	tb := New()
	tb.Intern("a")
	tb.Seal()
	if idx, ok := tb.Lookup("a"); !ok || tb.String(idx) != "a" {
		t.Error("Lookup after Seal failed for a previously interned string")
	}
}
