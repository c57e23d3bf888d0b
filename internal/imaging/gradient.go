package imaging

import "image"

const (
	gradientCropSize = 512
	gradientBlock    = 4
	gradientResizeW  = 9
	gradientResizeH  = 8
)

// computeGradient produces the 64-bit dHash component: center-crop to
// 512x512, blur, 4x4 block-average down to at most 128x128, bilinear resize
// to 9x8, then one bit per horizontal neighbor comparison.
func computeGradient(img image.Image) [8]byte {
	rect := centerCropRect(img.Bounds(), gradientCropSize, gradientCropSize)
	gray := toGray(img, rect)
	blurred := boxBlur3(gray)

	block := gradientBlock
	if blurred.w < block || blurred.h < block {
		block = 1
	}
	downsampled := blockAverage(blurred, block)

	resized := bilinearResize(downsampled, gradientResizeW, gradientResizeH)

	var out [8]byte
	for y := 0; y < gradientResizeH; y++ {
		var row byte
		for x := 0; x < gradientResizeW-1; x++ {
			row <<= 1
			if resized.at(x+1, y) > resized.at(x, y) {
				row |= 1
			}
		}
		out[y] = row
	}
	return out
}
