package credential

import "testing"

func TestFormatCheck(t *testing.T) {
	f := DefaultFormat()
	cases := []struct {
		name  string
		input string
		valid bool
	}{
		{"empty", "", false},
		{"wrong prefix", "sk-0123456789012345678901234567890", false},
		{"too short", "AIzaShort", false},
		{"valid", "AIzaSyA0123456789abcdefghijklmnopq", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reason := f.Check(tc.input)
			if tc.valid && reason != "" {
				t.Fatalf("expected valid, got reason %q", reason)
			}
			if !tc.valid && reason == "" {
				t.Fatalf("expected rejection for %q", tc.input)
			}
		})
	}
}
