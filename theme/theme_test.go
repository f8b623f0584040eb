package theme

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPalette(t *testing.T) {
	p := DefaultPalette()
	if p.Name != "plasma" || len(p.Colors) != 11 {
		t.Fatalf("palette = %s with %d colors", p.Name, len(p.Colors))
	}
	if got := p.Lookup(0); got != (RGB{13, 8, 135}) {
		t.Errorf("Lookup(0) = %v", got)
	}
	if got := p.Lookup(1); got != (RGB{240, 249, 33}) {
		t.Errorf("Lookup(1) = %v", got)
	}
}

func TestParseGPL(t *testing.T) {
	src := `GIMP Palette
Name: two
Columns: 2
# comment
  0   0   0	black
255 255 255	white
300   0   0	out of range
  1   2
`
	p, err := ParseGPL(strings.NewReader(src), "test")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "two" || len(p.Colors) != 2 {
		t.Fatalf("palette = %+v", p)
	}
	if got := p.Lookup(0.5); got != (RGB{127, 127, 127}) {
		t.Errorf("Lookup(0.5) = %v", got)
	}
	if got := p.Index(5); got != (RGB{255, 255, 255}) {
		t.Errorf("Index(5) = %v", got)
	}

	if _, err := ParseGPL(strings.NewReader("GIMP Palette\n"), "empty"); err == nil {
		t.Error("empty palette accepted")
	}
}

func TestLoadFallsBack(t *testing.T) {
	th := Load(filepath.Join(t.TempDir(), "missing.gpl"))
	if th.Palette.Name != "plasma" {
		t.Errorf("fallback palette = %s", th.Palette.Name)
	}

	path := filepath.Join(t.TempDir(), "mono.gpl")
	if err := os.WriteFile(path, []byte("GIMP Palette\nName: mono\n10 20 30\n"), 0644); err != nil {
		t.Fatal(err)
	}
	th = Load(path)
	if th.Palette.Name != "mono" || th.RGB(0.7) != (RGB{10, 20, 30}) {
		t.Errorf("loaded %+v", th.Palette)
	}
	if th.Color(0) != "#0a141e" {
		t.Errorf("Color(0) = %s", th.Color(0))
	}
}

func TestCellGlyphs(t *testing.T) {
	th := New(DefaultPalette())
	want := []rune{'·', '▁', '▄', '█', '█'}
	for level, r := range want {
		if got, _ := th.Cell(level); got != r {
			t.Errorf("Cell(%d) = %c, want %c", level, got, r)
		}
	}
}
