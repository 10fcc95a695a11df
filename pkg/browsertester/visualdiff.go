package browsertester

import (
	"bytes"
	"image"
	"image/png"

	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
)

// VisualDiffRatio computes the fraction of pixels (0..1) whose luminance
// differs by more than the given threshold between baseline and
// candidate PNG buffers. Images are compared over the overlapping region
// if dimensions differ, and any non-overlapping region counts as fully
// differing.
func VisualDiffRatio(baselinePNG, candidatePNG []byte, lumaThreshold uint8) (float64, error) {
	baseline, err := decodePNG(baselinePNG)
	if err != nil {
		return 0, sharederrors.ParseError("baseline screenshot", "png", err)
	}
	candidate, err := decodePNG(candidatePNG)
	if err != nil {
		return 0, sharederrors.ParseError("candidate screenshot", "png", err)
	}

	bb := baseline.Bounds()
	cb := candidate.Bounds()
	width := maxInt(bb.Dx(), cb.Dx())
	height := maxInt(bb.Dy(), cb.Dy())
	if width == 0 || height == 0 {
		return 0, nil
	}

	overlapW := minInt(bb.Dx(), cb.Dx())
	overlapH := minInt(bb.Dy(), cb.Dy())

	total := width * height
	differing := 0

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x >= overlapW || y >= overlapH {
				differing++
				continue
			}
			l1 := luminance(baseline.At(bb.Min.X+x, bb.Min.Y+y))
			l2 := luminance(candidate.At(cb.Min.X+x, cb.Min.Y+y))
			diff := int(l1) - int(l2)
			if diff < 0 {
				diff = -diff
			}
			if diff > int(lumaThreshold) {
				differing++
			}
		}
	}

	return float64(differing) / float64(total), nil
}

func decodePNG(data []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(data))
}

func luminance(c interface{ RGBA() (r, g, b, a uint32) }) uint8 {
	r, g, b, _ := c.RGBA()
	// RGBA() returns 16-bit-scaled channels; fold to 8-bit before the
	// standard luma weighting so threshold comparisons stay in 0..255.
	r8, g8, b8 := r>>8, g>>8, b>>8
	return uint8((299*r8 + 587*g8 + 114*b8) / 1000)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
