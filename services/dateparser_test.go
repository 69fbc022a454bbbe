package services

import (
	"testing"
	"time"
)

func TestParsePublicationDate(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"SJAA1961", "1961-01-01"},
		{"Eph79_06", "1979-06-01"},
		{"Eph79_05Unknown", "1979-05-01"},
		{"eph78_Misc", "1978-01-01"},
		{"Misc_80", "1980-01-01"},
		{"Report2019_03", "2019-03-01"},
		{"Bulletin2019Mar", "2019-03-01"},
		{"Sep99Notes", "1999-09-01"},
		{"Notes99Sep", "1999-09-01"},
		{"Archive2024", "2024-01-01"},
		{"vol_05_extra", "2005-01-01"},
	}
	for _, tc := range cases {
		got := ParsePublicationDate(tc.name)
		if got == nil {
			t.Fatalf("ParsePublicationDate(%q) = nil, want %s", tc.name, tc.want)
		}
		if got.Format("2006-01-02") != tc.want {
			t.Fatalf("ParsePublicationDate(%q) = %s, want %s", tc.name, got.Format("2006-01-02"), tc.want)
		}
	}
}

func TestParsePublicationDateUnparseable(t *testing.T) {
	for _, name := range []string{"", "   ", "NoDigitsHere", "0123456", "Archive9999"} {
		if got := ParsePublicationDate(name); got != nil {
			t.Fatalf("ParsePublicationDate(%q) = %v, want nil", name, got)
		}
	}
}

func TestParsePublicationDateTwoDigitYearWindow(t *testing.T) {
	if got := ParsePublicationDate("Eph30_01"); got == nil || got.Year() != 2030 {
		t.Fatalf("year 30 should expand to 2030, got %v", got)
	}
	if got := ParsePublicationDate("Eph31_01"); got == nil || got.Year() != 1931 {
		t.Fatalf("year 31 should expand to 1931, got %v", got)
	}
}

func TestParsePublicationDateNormalizesToFirstOfMonth(t *testing.T) {
	got := ParsePublicationDate("Eph79_06")
	if got == nil {
		t.Fatal("expected a date")
	}
	want := time.Date(1979, time.June, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParsePublicationDateInvalidMonthFallsThrough(t *testing.T) {
	// 13 is not a valid month, so the year+month patterns yield
	// nothing and the bare 4-digit year pattern picks up 2019.
	got := ParsePublicationDate("Doc2019_13")
	if got == nil || got.Format("2006-01-02") != "2019-01-01" {
		t.Fatalf("got %v, want 2019-01-01", got)
	}
}
