package normalize

import "testing"

func TestFold(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hello", "hello"},
		{"ch\u1ee7q", "chuq"},
		{"\u00cds t\u00f4", "is to"},
		{"\u0131q", "iq"},
		{"a, b!", "a b "},
		{" pai ", " pai "},
		{"snake_case-word", "snake_case-word"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Fold(c.in); got != c.want {
			t.Errorf("Fold(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFoldBlank(t *testing.T) {
	for _, in := range []string{".", "!?", "\u0301", ""} {
		if !Blank(Fold(in)) {
			t.Errorf("Fold(%q) = %q, expected blank", in, Fold(in))
		}
	}
	if Blank(Fold("a.")) {
		t.Error("Fold(\"a.\") should not be blank")
	}
}

func TestCompose(t *testing.T) {
	got := Compose("take ___ and\r\n ___")
	want := "take ▯ and ▯"
	if got != want {
		t.Errorf("Compose = %q, want %q", got, want)
	}
	// e + combining acute composes into a single rune.
	if got := Compose("e\u0301"); got != "\u00e9" {
		t.Errorf("Compose did not NFC-compose: %q", got)
	}
}
