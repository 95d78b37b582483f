package sheet

import "testing"

func TestFromCellRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		kind Kind
		out  string
	}{
		{"", KindEmpty, ""},
		{"   ", KindEmpty, ""},
		{"9000", KindNumber, "9000"},
		{"7.5", KindNumber, "7.5"},
		{"-3.25", KindNumber, "-3.25"},
		{"1234567", KindNumber, "1234567"},
		{"20240305", KindNumber, "20240305"},
		{"1.5e3", KindNumber, "1.5e3"},
		{"0.50", KindNumber, "0.50"},
		{"Oatmeal", KindString, "Oatmeal"},
		{"2024-03-05", KindString, "2024-03-05"},
	}
	for _, tc := range cases {
		v := FromCell(tc.in)
		if v.Kind() != tc.kind {
			t.Errorf("FromCell(%q).Kind() = %v, want %v", tc.in, v.Kind(), tc.kind)
		}
		if v.Cell() != tc.out {
			t.Errorf("FromCell(%q).Cell() = %q, want %q", tc.in, v.Cell(), tc.out)
		}
	}
}

func TestNumberNeverRendersScientificNotation(t *testing.T) {
	cases := map[float64]string{
		1234567:  "1234567",
		20240305: "20240305",
		2.5:      "2.5",
		-300:     "-300",
	}
	for in, want := range cases {
		if got := Number(in).Cell(); got != want {
			t.Errorf("Number(%v).Cell() = %q, want %q", in, got, want)
		}
	}
}

func TestStringEmptyCollapsesToEmpty(t *testing.T) {
	if !String("").IsEmpty() {
		t.Fatal("String(\"\") should be Empty")
	}
}

func TestRowGetAndClone(t *testing.T) {
	r := Row{"Steps": Number(9000)}

	if v := r.Get("Missing"); !v.IsEmpty() {
		t.Fatalf("Get(Missing) = %v, want Empty", v)
	}
	if v := Row(nil).Get("Steps"); !v.IsEmpty() {
		t.Fatalf("nil row Get = %v, want Empty", v)
	}

	cp := r.Clone()
	cp["Steps"] = Number(1)
	if n, _ := r.Get("Steps").Number(); n != 9000 {
		t.Fatalf("Clone aliases original: %v", n)
	}
}
