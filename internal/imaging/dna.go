package imaging

import (
	"image"

	"github.com/protrace/registry-engine/pkg/models"
)

// ComputeDNA decodes raw image bytes once and derives its full 256-bit
// fingerprint: the 64-bit gradient component followed by the 192-bit
// structural component.
func ComputeDNA(raw []byte) (models.DNA, error) {
	img, err := Decode(raw)
	if err != nil {
		return models.DNA{}, err
	}
	return ComputeDNAFromImage(img), nil
}

// ComputeDNAFromImage derives the fingerprint of an already-decoded image,
// skipping the format-sniffing entrypoint. Used directly by callers (and
// tests) that construct images in-process rather than from an encoded file.
func ComputeDNAFromImage(img image.Image) models.DNA {
	var d models.DNA
	grad := computeGradient(img)
	structural := computeStructural(img)
	copy(d[:8], grad[:])
	copy(d[8:], structural[:])
	return d
}
