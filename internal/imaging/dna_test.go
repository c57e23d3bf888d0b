package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func solidImage(size int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func quadrantImage(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	half := size / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			switch {
			case x < half && y < half:
				img.Set(x, y, color.Black)
			case x >= half && y < half:
				img.Set(x, y, color.White)
			case x < half && y >= half:
				img.Set(x, y, color.Gray{Y: 80})
			default:
				img.Set(x, y, color.Gray{Y: 200})
			}
		}
	}
	return img
}

func TestComputeDNA_SolidImageGradientIsZero(t *testing.T) {
	img := solidImage(64, color.RGBA{R: 200, G: 30, B: 30, A: 255})
	dna := ComputeDNAFromImage(img)

	// Every row of a constant-color image is flat, so the gradient component
	// is all zero. The structural component is not: the image sits on a
	// black padded canvas, so the blocks it covers lie above the median.
	for i, b := range dna.Gradient() {
		if b != 0 {
			t.Fatalf("expected all-zero gradient component for a constant-color image, byte %d = %#x", i, b)
		}
	}
}

func TestComputeDNA_Deterministic(t *testing.T) {
	img := quadrantImage(256)

	first := ComputeDNAFromImage(img)
	second := ComputeDNAFromImage(img)

	if first != second {
		t.Fatalf("expected identical dna across repeated calls, got %s vs %s", first.Hex(), second.Hex())
	}
}

func TestComputeDNA_DifferentImagesDiffer(t *testing.T) {
	a := quadrantImage(256)
	b := solidImage(256, color.RGBA{R: 10, G: 10, B: 10, A: 255})

	dnaA := ComputeDNAFromImage(a)
	dnaB := ComputeDNAFromImage(b)

	if dnaA == dnaB {
		t.Fatalf("expected visibly different images to produce different dna")
	}
}

func TestDecode_RejectsUnsupportedFormat(t *testing.T) {
	_, err := Decode([]byte("not an image"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for unrecognized bytes, got %v", err)
	}
}

func TestDecode_RejectsInvalidImageDistinctFromUnsupported(t *testing.T) {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	corrupt := append(append([]byte{}, pngMagic...), []byte("this is not a valid png chunk stream")...)

	_, err := Decode(corrupt)
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage for a recognized-but-corrupt format, got %v", err)
	}
	if errors.Is(err, ErrUnsupportedFormat) {
		t.Fatal("a recognized format's decode failure must not also be reported as unsupported")
	}
}

func TestDecode_RejectsTooSmall(t *testing.T) {
	tiny := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, tiny); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}

	_, err := Decode(buf.Bytes())
	if err != ErrImageTooSmall {
		t.Fatalf("expected ErrImageTooSmall, got %v", err)
	}
}

func TestDecode_AcceptsEncodedPNG(t *testing.T) {
	img := quadrantImage(64)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}

	dna, err := ComputeDNA(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dna != ComputeDNAFromImage(img) {
		t.Fatalf("expected decode-then-compute to match direct compute on the same pixels")
	}
}
