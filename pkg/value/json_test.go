package value

import "testing"

func TestEmitSortsKeys(t *testing.T) {
	v := NewAssoc(map[string]Value{
		"b": NewList(NewScalar("1"), NewScalar("2")),
		"a": NewScalar("null"),
	})
	got := Emit(v)
	want := `{"a":null,"b":["1","2"]}`
	if got != want {
		t.Fatalf("Emit() = %q, want %q", got, want)
	}
}

func TestParseEmitRoundTrip(t *testing.T) {
	in := `{"a":null,"b":["1","2"]}`
	v, err := Parse(in)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got := Emit(v)
	if got != in {
		t.Fatalf("round-trip = %q, want %q", got, in)
	}
}

func TestParseRejectsMalformedNumbers(t *testing.T) {
	cases := []string{"01", "1.", "-", "1e", "1ee2"}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", c)
		}
	}
}

func TestParseRejectsTruncatedAndUnterminated(t *testing.T) {
	cases := []string{`{"a":`, `"unterminated`, `[1,2`}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", c)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := NewList(NewScalar("x"))
	clone := orig.Clone()
	if !Equal(orig, clone) {
		t.Fatalf("clone not equal to original")
	}
}

func TestIteratorRepeatable(t *testing.T) {
	v := NewList(NewScalar("a"), NewScalar("b"))
	it := Iterate(v)
	var first []string
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		s, _ := e.Scalar()
		first = append(first, s)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 items, got %d", len(first))
	}
	it2 := Iterate(v)
	count := 0
	for {
		if _, ok := it2.Next(); !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("second iterator got %d items, want 2", count)
	}
}

func TestMergeSemantics(t *testing.T) {
	arr1 := NewList(NewScalar("1"))
	arr2 := NewList(NewScalar("2"))
	merged := Merge(arr1, arr2)
	items, _ := merged.Items()
	if len(items) != 2 {
		t.Fatalf("array+array merge: got %d items, want 2", len(items))
	}

	obj1 := NewAssoc(map[string]Value{"x": NewScalar("1")})
	obj2 := NewAssoc(map[string]Value{"x": NewScalar("2"), "y": NewScalar("3")})
	mergedObj := Merge(obj1, obj2)
	fields, _ := mergedObj.AssocFields()
	if s, _ := fields["x"].Scalar(); s != "2" {
		t.Fatalf("object+object merge not right-biased: x=%s", s)
	}
	if _, ok := fields["y"]; !ok {
		t.Fatalf("object+object merge dropped field y")
	}
}
