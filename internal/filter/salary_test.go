package filter

import "testing"

func TestExtractSalary(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"$15-20k", 15000, true},
		{"15-20k", 15000, true},
		{"$90k", 90000, true},
		{"$90,000", 90000, true},
		{"$20/hour", 41600, true},
		{"€25/hr", 52000, true},
		{"120000", 120000, true},
		{"competitive", 0, false},
		{"", 0, false},
		{"DOE", 0, false},
	}
	for _, c := range cases {
		got, ok := ExtractSalary(c.in)
		if ok != c.ok {
			t.Errorf("ExtractSalary(%q) ok = %v, want %v", c.in, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("ExtractSalary(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
