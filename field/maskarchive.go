package field

import (
	"archive/zip"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Mask archives are the hand-off point from the external detector: one ZIP
// per tile named "<tileID>_masks.zip", each entry a PNG where any nonzero
// pixel is foreground. One entry per detected object.

const maskArchiveSuffix = "_masks.zip"

// ListMaskArchives returns the mask archives in a directory, sorted by
// name. A missing directory is a fatal input error.
func ListMaskArchives(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &MissingInputError{Kind: "mask directory", Path: dir}
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*"+maskArchiveSuffix))
	if err != nil {
		return nil, fmt.Errorf("listing mask archives: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// TileIDFromArchive derives the tile identifier from an archive path.
func TileIDFromArchive(path string) string {
	return strings.TrimSuffix(filepath.Base(path), maskArchiveSuffix)
}

// ReadMaskArchive loads every mask in a tile archive. Entries are read in
// name order so mask indices are stable across runs.
func ReadMaskArchive(path string) ([]BinaryMask, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening mask archive %s: %w", path, err)
	}
	defer zr.Close()

	tileID := TileIDFromArchive(path)

	entries := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".png") {
			entries = append(entries, f)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	masks := make([]BinaryMask, 0, len(entries))
	for i, entry := range entries {
		mask, err := readMaskEntry(entry, tileID, i)
		if err != nil {
			return nil, fmt.Errorf("mask %s in %s: %w", entry.Name, path, err)
		}
		masks = append(masks, mask)
	}
	return masks, nil
}

func readMaskEntry(entry *zip.File, tileID string, index int) (BinaryMask, error) {
	rc, err := entry.Open()
	if err != nil {
		return BinaryMask{}, err
	}
	defer rc.Close()

	img, err := png.Decode(rc)
	if err != nil {
		return BinaryMask{}, fmt.Errorf("decoding PNG: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	bits := make([]bool, w*h)

	// Fast path for the grayscale masks the detector emits; anything else
	// goes through the generic color model.
	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
			for x, v := range row {
				bits[y*w+x] = v != 0
			}
		}
	} else {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
				bits[y*w+x] = g.Y != 0
			}
		}
	}

	return BinaryMask{TileID: tileID, Index: index, Width: w, Height: h, Bits: bits}, nil
}
