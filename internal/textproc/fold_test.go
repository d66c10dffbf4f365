package textproc

import "testing"

func TestFold(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"ascii passthrough", "Kastrup", "kastrup"},
		{"danish o-stroke", "København", "kobenhavn"},
		{"swedish umlauts", "Örlogsbasen Karlskrona", "orlogsbasen karlskrona"},
		{"norwegian ae", "Storebæltsbroen", "storebaeltsbroen"},
		{"german sharp s", "Straße", "strasse"},
		{"polish stroke l", "Łódź", "lodz"},
		{"finnish", "lentoasema", "lentoasema"},
		{"whitespace trimmed", "  Arlanda  ", "arlanda"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fold(tt.input); got != tt.expected {
				t.Errorf("Fold(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
