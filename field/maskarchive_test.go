package field

import (
	"archive/zip"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writeMaskArchive creates a tile archive with one PNG per pattern.
func writeMaskArchive(t *testing.T, path string, patterns map[string][]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating archive: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, rows := range patterns {
		img := image.NewGray(image.Rect(0, 0, len(rows[0]), len(rows)))
		for y, row := range rows {
			for x, c := range row {
				if c == '#' {
					img.SetGray(x, y, color.Gray{Y: 255})
				}
			}
		}
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry: %v", err)
		}
		if err := png.Encode(w, img); err != nil {
			t.Fatalf("encoding png: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
}

func TestListMaskArchives(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"t2_masks.zip", "t1_masks.zip", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	got, err := ListMaskArchives(dir)
	if err != nil {
		t.Fatalf("ListMaskArchives: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d archives, want 2", len(got))
	}
	if filepath.Base(got[0]) != "t1_masks.zip" || filepath.Base(got[1]) != "t2_masks.zip" {
		t.Errorf("archives not sorted: %v", got)
	}
}

func TestListMaskArchivesMissingDir(t *testing.T) {
	_, err := ListMaskArchives(filepath.Join(t.TempDir(), "absent"))
	var missing *MissingInputError
	if !errors.As(err, &missing) {
		t.Fatalf("got %v, want MissingInputError", err)
	}
}

func TestTileIDFromArchive(t *testing.T) {
	if got := TileIDFromArchive("/data/masks/S2_021015_masks.zip"); got != "S2_021015" {
		t.Errorf("tile id = %q", got)
	}
}

func TestReadMaskArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "S2_021015_masks.zip")
	writeMaskArchive(t, path, map[string][]string{
		"mask_002.png": {"##", ".."},
		"mask_001.png": {".#", "#."},
	})

	masks, err := ReadMaskArchive(path)
	if err != nil {
		t.Fatalf("ReadMaskArchive: %v", err)
	}
	if len(masks) != 2 {
		t.Fatalf("got %d masks, want 2", len(masks))
	}

	// Entries are read in name order, so mask_001 comes first.
	m := masks[0]
	if m.TileID != "S2_021015" || m.Index != 0 {
		t.Errorf("mask 0 identity = %s/%d", m.TileID, m.Index)
	}
	if m.At(0, 0) || !m.At(1, 0) || !m.At(0, 1) || m.At(1, 1) {
		t.Errorf("mask 0 bits wrong: %v", m.Bits)
	}
	if masks[1].PositiveCount() != 2 {
		t.Errorf("mask 1 positive count = %d, want 2", masks[1].PositiveCount())
	}
}

func TestReadMaskArchiveCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad_masks.zip")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("writing: %v", err)
	}
	if _, err := ReadMaskArchive(path); err == nil {
		t.Errorf("corrupt archive accepted")
	}
}
