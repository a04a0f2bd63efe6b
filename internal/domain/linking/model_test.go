package linking

import (
	"errors"
	"testing"
)

func TestNormalizeCode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare code", "sarah-4821", "sarah-4821"},
		{"upper case", "SARAH-4821", "sarah-4821"},
		{"surrounding whitespace", "  sarah-4821\n", "sarah-4821"},
		{"share url", "https://app.example.com/invite/sarah-4821", "sarah-4821"},
		{"share url trailing slash", "https://app.example.com/invite/sarah-4821/", "sarah-4821"},
		{"share url with query", "https://app.example.com/invite/sarah-4821?src=sms", "sarah-4821"},
		{"share url with fragment", "https://app.example.com/invite/sarah-4821#open", "sarah-4821"},
		{"pasted path only", "/invite/tom-caregiver-99", "tom-caregiver-99"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeCode(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("NormalizeCode(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeCode_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "https://app.example.com/invite/", "/invite/"} {
		if _, err := NormalizeCode(in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("NormalizeCode(%q): expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestShareURL(t *testing.T) {
	got := ShareURL("https://app.example.com", "sarah-4821")
	want := "https://app.example.com/invite/sarah-4821"
	if got != want {
		t.Errorf("ShareURL = %q, want %q", got, want)
	}
	if ShareURL("https://app.example.com/", "sarah-4821") != want {
		t.Error("trailing slash in base must not double the separator")
	}
}

func TestShareURLRoundTrip(t *testing.T) {
	code, err := NormalizeCode(ShareURL("https://app.example.com", "sarah-4821"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "sarah-4821" {
		t.Errorf("round trip gave %q", code)
	}
}

func TestInitialsHint(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Sarah Connor", "SC"},
		{"Tom", "T"},
		{"ana maría lopez", "AM"},
		{"", "?"},
		{"   ", "?"},
		{"123 456", "?"},
	}
	for _, tc := range cases {
		if got := initialsHint(tc.in); got != tc.want {
			t.Errorf("initialsHint(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCodeFragment(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Sarah Connor", "sarah"},
		{"Tom", "tom"},
		{"O'Brien Kelly", "obrien"},
		{"", "care"},
		{"1234", "care"},
		{"averyveryverylongfirstname x", "averyveryver"},
	}
	for _, tc := range cases {
		if got := codeFragment(tc.in); got != tc.want {
			t.Errorf("codeFragment(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
