package core

import "testing"

func TestParseSum(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"1", 1, true},
		{"0", 0, true},
		{"12.34", 12.34, true},
		{" 2.50 ", 2.5, true},
		{"1e3", 1000, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"1e400", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseSum(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}
