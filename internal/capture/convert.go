package capture

import "fmt"

// ConvertPacked converts a width x height landscape frame of packed pixels
// into portrait RGB. The source pixel at (x, y) lands at
// (width-x-1)*height*3 + (height-y-1)*3, which rotates the image and
// mirrors it in one pass. dst must hold exactly width*height*3 bytes.
func ConvertPacked(dst []byte, src []uint32, width, height int) error {
	if err := checkSizes(len(dst), len(src), width, height, width*height); err != nil {
		return err
	}

	for y := 0; y < height; y++ {
		row := src[y*width : (y+1)*width]
		for x, p := range row {
			i := (width-x-1)*height*BytesPerPixel + (height-y-1)*BytesPerPixel
			dst[i] = byte(p)
			dst[i+1] = byte(p >> 8)
			dst[i+2] = byte(p >> 16)
		}
	}
	return nil
}

// ConvertPackedRaster copies packed pixels into RGB in raster order. It is
// used for devices that already deliver portrait frames.
func ConvertPackedRaster(dst []byte, src []uint32, width, height int) error {
	if err := checkSizes(len(dst), len(src), width, height, width*height); err != nil {
		return err
	}

	for i, p := range src {
		o := i * BytesPerPixel
		dst[o] = byte(p)
		dst[o+1] = byte(p >> 8)
		dst[o+2] = byte(p >> 16)
	}
	return nil
}

// ConvertYUV420SP converts a semi-planar 4:2:0 frame into RGB in raster
// order using the fixed-point BT.601 approximation below. Each chroma pair
// is shared by a 2x2 block of luma samples; the first byte of a pair is
// taken as Cb and the second as Cr.
//
//	Y' = Y + Y>>3 + Y>>5 + Y>>7
//	R  = Y' + Cr<<1 + Cr>>6
//	G  = Y' - Cb + Cb>>3 + Cb>>4 - Cr>>1 + Cr>>3
//	B  = Y' + Cb + Cb>>1 + Cb>>4 + Cb>>5
//
// Chroma is recentred by subtracting 128. Shifts of negative chroma round
// toward negative infinity, exactly as the integer pipeline on device does.
// Luma is read unsigned and a chroma byte of 128 is neutral; the Android
// path read both as signed bytes, which put neutral at -1 and shifted Y>=128
// down by one.
func ConvertYUV420SP(dst, src []byte, width, height int) error {
	if err := checkSizes(len(dst), len(src), width, height, width*height*3/2); err != nil {
		return err
	}
	if width%2 != 0 || height%2 != 0 {
		return fmt.Errorf("%w: odd yuv dimensions %dx%d", ErrConversionFault, width, height)
	}

	size := width * height
	o := 0
	for j := 0; j < height; j++ {
		luma := src[j*width : (j+1)*width]
		chroma := src[size+(j>>1)*width:]
		var cb, cr int
		for i, yv := range luma {
			if i&1 == 0 {
				c := (i >> 1) * 2
				cb = int(chroma[c]) - 128
				cr = int(chroma[c+1]) - 128
			}

			y := int(yv)
			y = y + (y >> 3) + (y >> 5) + (y >> 7)

			dst[o] = clamp(y + (cr << 1) + (cr >> 6))
			dst[o+1] = clamp(y - cb + (cb >> 3) + (cb >> 4) - (cr >> 1) + (cr >> 3))
			dst[o+2] = clamp(y + cb + (cb >> 1) + (cb >> 4) + (cb >> 5))
			o += BytesPerPixel
		}
	}
	return nil
}

// RotatePortrait applies the landscape to portrait remap of ConvertPacked
// to an RGB raster: the triplet at (x, y) of the width x height source is
// written to (width-x-1)*height*3 + (height-y-1)*3.
func RotatePortrait(dst, src []byte, width, height int) error {
	n := width * height * BytesPerPixel
	if width <= 0 || height <= 0 || len(src) != n || len(dst) != n {
		return fmt.Errorf("%w: rotate %dx%d src=%d dst=%d", ErrConversionFault, width, height, len(src), len(dst))
	}

	s := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (width-x-1)*height*BytesPerPixel + (height-y-1)*BytesPerPixel
			dst[i] = src[s]
			dst[i+1] = src[s+1]
			dst[i+2] = src[s+2]
			s += BytesPerPixel
		}
	}
	return nil
}

func checkSizes(dstLen, srcLen, width, height, wantSrc int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: bad dimensions %dx%d", ErrConversionFault, width, height)
	}
	if srcLen != wantSrc {
		return fmt.Errorf("%w: source has %d elements, want %d", ErrConversionFault, srcLen, wantSrc)
	}
	if want := width * height * BytesPerPixel; dstLen != want {
		return fmt.Errorf("%w: destination has %d bytes, want %d", ErrConversionFault, dstLen, want)
	}
	return nil
}

func clamp(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
