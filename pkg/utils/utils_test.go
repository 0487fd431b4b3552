package utils

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"The Joe’s  Café!", "joes cafe"},
		{"joe's cafe", "joes cafe"},
		{"  La Habichuela  ", "la habichuela"},
		{"Fish & Chips", "fish and chips"},
		{"The", "the"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeName(tt.in); got != tt.want {
				t.Fatalf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTitleCase(t *testing.T) {
	if got := TitleCase("COCO BONGO  club"); got != "Coco Bongo Club" {
		t.Fatalf("TitleCase = %q", got)
	}
}

func TestWebsiteAndPhoneChecks(t *testing.T) {
	if !IsValidWebsite("www.Example.com/menu") || IsValidWebsite("not a url") || IsValidWebsite("") {
		t.Fatalf("website validation wrong")
	}
	if ExtractDomain("https://www.cocobongo.com.mx/") != "cocobongo.com.mx" {
		t.Fatalf("domain = %q", ExtractDomain("https://www.cocobongo.com.mx/"))
	}
	if NormalizePhoneNumber("(998) 883-5061") != "+19988835061" {
		t.Fatalf("phone = %q", NormalizePhoneNumber("(998) 883-5061"))
	}
	if !IsValidPhone("+52 998 883 5061") || IsValidPhone("12-34") {
		t.Fatalf("phone validation wrong")
	}
}

func TestCalculateStringSimilarity(t *testing.T) {
	if CalculateStringSimilarity("abc", "abc") != 1 || CalculateStringSimilarity("", "x") != 0 {
		t.Fatalf("edge cases wrong")
	}
	if s := CalculateStringSimilarity("joes", "joe"); s != 0.75 {
		t.Fatalf("similarity = %v", s)
	}
}
