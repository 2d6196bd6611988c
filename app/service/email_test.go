package service

import "testing"

func TestCanonicalizeEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "A@X.com", want: "a@x.com"},
		{in: "  bob@example.org ", want: "bob@example.org"},
		{in: "John.Doe+news@gmail.com", want: "johndoe@gmail.com"},
		{in: "john.doe@googlemail.com", want: "johndoe@gmail.com"},
		{in: "first.last+tag@example.com", want: "first.last+tag@example.com"},
		{in: "not-an-email", want: "not-an-email"},
		{in: "trailing@", want: "trailing@"},
	}
	for _, tc := range cases {
		if got := CanonicalizeEmail(tc.in); got != tc.want {
			t.Fatalf("CanonicalizeEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
