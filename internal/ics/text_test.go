package ics

import "testing"

func TestRepairText(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"", ""},
		{`a\nb\,c`, "a\nb,c"},
		{`one\, two\, three`, "one, two, three"},
		{`keep \t and \;`, `keep \t and \;`},
		{"plain text", "plain text"},
	} {
		if got := RepairText(tc.in); got != tc.want {
			t.Errorf("RepairText(%q): expected %q, got %q", tc.in, tc.want, got)
		}
		if again := RepairText(tc.want); again != tc.want {
			t.Errorf("RepairText not idempotent on %q: got %q", tc.want, again)
		}
	}
}
