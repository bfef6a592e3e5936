package screengrab

import "github.com/klauspost/cpuid"

// wideSwizzle selects the block-unrolled BGRA conversion. The fixed
// 16-byte blocks compile to wide loads and shuffles that only pay off on
// CPUs with 256-bit vector units.
var wideSwizzle = cpuid.CPU.AVX2()

// swapBGRAtoRGBA converts n 32-bit BGRx pixels to RGBx with alpha forced
// opaque. dst and src must each hold at least 4*n bytes and may not
// overlap.
func swapBGRAtoRGBA(dst, src []byte, n int) {
	if wideSwizzle {
		swapBGRAtoRGBAWide(dst, src, n)
		return
	}
	for i := 0; i < n*4; i += 4 {
		dst[i] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i]
		dst[i+3] = 0xff
	}
}

func swapBGRAtoRGBAWide(dst, src []byte, n int) {
	i := 0
	for ; i+4 <= n; i += 4 {
		d := dst[i*4 : i*4+16 : i*4+16]
		s := src[i*4 : i*4+16 : i*4+16]
		d[0], d[1], d[2], d[3] = s[2], s[1], s[0], 0xff
		d[4], d[5], d[6], d[7] = s[6], s[5], s[4], 0xff
		d[8], d[9], d[10], d[11] = s[10], s[9], s[8], 0xff
		d[12], d[13], d[14], d[15] = s[14], s[13], s[12], 0xff
	}
	for ; i < n; i++ {
		j := i * 4
		dst[j], dst[j+1], dst[j+2], dst[j+3] = src[j+2], src[j+1], src[j], 0xff
	}
}
