package gallery

import "testing"

func TestNewKeyFilter(t *testing.T) {
	t.Run("skips blank entries and comments", func(t *testing.T) {
		f := NewKeyFilter([]string{"", "  ", "# comment", "*.MP4"})
		if len(f.patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(f.patterns))
		}
		if f.patterns[0].pattern != "*.MP4" {
			t.Errorf("expected *.MP4, got %s", f.patterns[0].pattern)
		}
	})

	t.Run("classifies path vs name patterns", func(t *testing.T) {
		f := NewKeyFilter([]string{"*-edited.jpg", "Trash/*"})
		if f.patterns[0].matchPath {
			t.Error("*-edited.jpg should not be a path pattern")
		}
		if !f.patterns[1].matchPath {
			t.Error("Trash/* should be a path pattern")
		}
	})
}

func TestKeyFilter_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		relative string
		want     bool
	}{
		{name: "name glob in folder", patterns: []string{"*-edited.jpg"}, relative: "Trip/IMG_1-edited.jpg", want: true},
		{name: "name glob no match", patterns: []string{"*-edited.jpg"}, relative: "Trip/IMG_1.jpg", want: false},
		{name: "path glob matches folder", patterns: []string{"Trash/*"}, relative: "Trash/IMG_1.jpg", want: true},
		{name: "path glob is anchored", patterns: []string{"Trash/*"}, relative: "Trip/Trash/IMG_1.jpg", want: false},
		{name: "path glob does not cross folders", patterns: []string{"Trash/*"}, relative: "Trash/old/IMG_1.jpg", want: false},
		{name: "wildcard folder", patterns: []string{"*/metadata.json"}, relative: "Trip/metadata.json", want: true},
		{name: "malformed pattern skipped", patterns: []string{"[", "*.png"}, relative: "Trip/a.png", want: true},
		{name: "malformed pattern alone", patterns: []string{"["}, relative: "Trip/[", want: false},
		{name: "no patterns", patterns: nil, relative: "Trip/a.jpg", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewKeyFilter(tt.patterns).Match(tt.relative); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.relative, got, tt.want)
			}
		})
	}
}

func TestKeyFilter_NilMatchesNothing(t *testing.T) {
	var f *KeyFilter
	if f.Match("Trip/a.jpg") {
		t.Error("nil KeyFilter matched")
	}
}
