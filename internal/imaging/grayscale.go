package imaging

import "image"

// grayFrame is a plain row-major float32 luminance buffer, used instead of
// image.Gray so every downstream step (blur, block-average, resize) works in
// floating point without repeated quantization. float32 throughout, not
// float64, to match the single-precision arithmetic the reference dHash and
// grid-hash pipeline uses.
type grayFrame struct {
	w, h int
	px   []float32
}

func newGrayFrame(w, h int) *grayFrame {
	return &grayFrame{w: w, h: h, px: make([]float32, w*h)}
}

func (g *grayFrame) at(x, y int) float32 {
	if x < 0 {
		x = 0
	}
	if x >= g.w {
		x = g.w - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= g.h {
		y = g.h - 1
	}
	return g.px[y*g.w+x]
}

func (g *grayFrame) set(x, y int, v float32) {
	g.px[y*g.w+x] = v
}

// toGray converts img to BT.601 luminance over the given sub-rectangle.
func toGray(img image.Image, rect image.Rectangle) *grayFrame {
	w, h := rect.Dx(), rect.Dy()
	out := newGrayFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(rect.Min.X+x, rect.Min.Y+y).RGBA()
			// RGBA() returns 16-bit-scaled channels; normalize to 8-bit range.
			rf := float32(r) / 257.0
			gf := float32(g) / 257.0
			bf := float32(b) / 257.0
			out.set(x, y, 0.299*rf+0.587*gf+0.114*bf)
		}
	}
	return out
}

// centerCropRect returns the rectangle of size (cropW, cropH) centered inside
// b, clamped so it never runs outside b's bounds.
func centerCropRect(b image.Rectangle, cropW, cropH int) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	if cropW > w {
		cropW = w
	}
	if cropH > h {
		cropH = h
	}
	x0 := b.Min.X + (w-cropW)/2
	y0 := b.Min.Y + (h-cropH)/2
	return image.Rect(x0, y0, x0+cropW, y0+cropH)
}

// boxBlur3 applies a 3x3 mean filter with replicated (clamp-to-edge) borders,
// matching scipy's uniform_filter(mode='nearest').
func boxBlur3(in *grayFrame) *grayFrame {
	out := newGrayFrame(in.w, in.h)
	for y := 0; y < in.h; y++ {
		for x := 0; x < in.w; x++ {
			var sum float32
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sum += in.at(x+dx, y+dy)
				}
			}
			out.set(x, y, sum/9.0)
		}
	}
	return out
}

// blockAverage downsamples in by averaging non-overlapping blockSize x
// blockSize blocks. Trailing rows/columns that don't fill a whole block are
// dropped, matching a reshape-then-mean downsample.
func blockAverage(in *grayFrame, blockSize int) *grayFrame {
	rows := in.h / blockSize
	cols := in.w / blockSize
	out := newGrayFrame(cols, rows)
	for by := 0; by < rows; by++ {
		for bx := 0; bx < cols; bx++ {
			var sum float32
			for dy := 0; dy < blockSize; dy++ {
				for dx := 0; dx < blockSize; dx++ {
					sum += in.at(bx*blockSize+dx, by*blockSize+dy)
				}
			}
			out.set(bx, by, sum/float32(blockSize*blockSize))
		}
	}
	return out
}

// bilinearResize resamples in to exactly (newW, newH) using bilinear
// interpolation over normalized coordinates.
func bilinearResize(in *grayFrame, newW, newH int) *grayFrame {
	out := newGrayFrame(newW, newH)
	if newW == 1 || newH == 1 || in.w == 1 || in.h == 1 {
		// Degenerate scale factor; fall back to nearest to avoid div-by-zero.
		for y := 0; y < newH; y++ {
			for x := 0; x < newW; x++ {
				sx := x * in.w / newW
				sy := y * in.h / newH
				out.set(x, y, in.at(sx, sy))
			}
		}
		return out
	}

	scaleX := float32(in.w-1) / float32(newW-1)
	scaleY := float32(in.h-1) / float32(newH-1)
	for y := 0; y < newH; y++ {
		srcY := float32(y) * scaleY
		y0 := int(srcY)
		fy := srcY - float32(y0)
		for x := 0; x < newW; x++ {
			srcX := float32(x) * scaleX
			x0 := int(srcX)
			fx := srcX - float32(x0)

			v00 := in.at(x0, y0)
			v10 := in.at(x0+1, y0)
			v01 := in.at(x0, y0+1)
			v11 := in.at(x0+1, y0+1)

			top := v00*(1-fx) + v10*fx
			bot := v01*(1-fx) + v11*fx
			out.set(x, y, top*(1-fy)+bot*fy)
		}
	}
	return out
}

// nearestResize resamples in to exactly (newW, newH) using nearest-neighbor,
// the resampling the structural scales use after median binarization.
func nearestResize(in *grayFrame, newW, newH int) *grayFrame {
	out := newGrayFrame(newW, newH)
	for y := 0; y < newH; y++ {
		sy := y * in.h / newH
		for x := 0; x < newW; x++ {
			sx := x * in.w / newW
			out.set(x, y, in.at(sx, sy))
		}
	}
	return out
}

// padToSquare centers in on a black square canvas of size x size. If in is
// already larger than size in some dimension, that dimension is left
// unpadded (the caller is expected to crop afterward).
func padToSquare(in *grayFrame, size int) *grayFrame {
	w, h := in.w, in.h
	if w < size {
		w = size
	}
	if h < size {
		h = size
	}
	out := newGrayFrame(w, h)
	offX := (w - in.w) / 2
	offY := (h - in.h) / 2
	for y := 0; y < in.h; y++ {
		for x := 0; x < in.w; x++ {
			out.set(x+offX, y+offY, in.at(x, y))
		}
	}
	return out
}

// centerCropFrame returns a new frame holding the centered (cropW, cropH)
// region of in.
func centerCropFrame(in *grayFrame, cropW, cropH int) *grayFrame {
	if cropW > in.w {
		cropW = in.w
	}
	if cropH > in.h {
		cropH = in.h
	}
	x0 := (in.w - cropW) / 2
	y0 := (in.h - cropH) / 2
	out := newGrayFrame(cropW, cropH)
	for y := 0; y < cropH; y++ {
		for x := 0; x < cropW; x++ {
			out.set(x, y, in.at(x0+x, y0+y))
		}
	}
	return out
}

// medianBinarize thresholds every pixel against the median of the whole
// frame: values strictly above the median become 1, the rest 0.
func medianBinarize(in *grayFrame) *grayFrame {
	vals := make([]float32, len(in.px))
	copy(vals, in.px)
	median := medianOf(vals)

	out := newGrayFrame(in.w, in.h)
	for i, v := range in.px {
		if v > median {
			out.px[i] = 1
		}
	}
	return out
}

func medianOf(vals []float32) float32 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	sorted := make([]float32, n)
	copy(sorted, vals)
	// Simple insertion sort is fine: these frames are at most a few hundred
	// pixels by the time binarization runs.
	for i := 1; i < n; i++ {
		v := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > v {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = v
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}
