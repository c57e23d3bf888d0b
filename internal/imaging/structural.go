package imaging

import "image"

const (
	structuralPadSize  = 2048
	structuralCropSize = 1024
	structuralGridSize = 8
)

// structuralBlockSizes are the three independent block sizes the grid hash
// samples at, coarse to fine.
var structuralBlockSizes = [3]int{128, 85, 64}

// computeStructural produces the 192-bit grid-hash component: pad to a
// 2048x2048 black square centered on the image, crop the centered 1024x1024
// region, then at three block sizes compute a median-binarized block-average
// grid and resize it (nearest-neighbor) down to 8x8. The three 64-bit scales
// are concatenated in coarse-to-fine order.
func computeStructural(img image.Image) [24]byte {
	full := toGray(img, img.Bounds())
	padded := padToSquare(full, structuralPadSize)
	cropped := centerCropFrame(padded, structuralCropSize, structuralCropSize)

	var out [24]byte
	for scale, blockSize := range structuralBlockSizes {
		grid := blockAverage(cropped, blockSize)
		binary := medianBinarize(grid)
		if binary.w != structuralGridSize || binary.h != structuralGridSize {
			binary = nearestResize(binary, structuralGridSize, structuralGridSize)
		}
		packBits(binary, out[scale*8:scale*8+8])
	}
	return out
}

// packBits packs an 8x8 binary grayFrame (values 0 or 1) into 8 bytes,
// row-major, most-significant bit first within each row.
func packBits(grid *grayFrame, dst []byte) {
	for y := 0; y < structuralGridSize; y++ {
		var row byte
		for x := 0; x < structuralGridSize; x++ {
			row <<= 1
			if grid.at(x, y) > 0 {
				row |= 1
			}
		}
		dst[y] = row
	}
}
