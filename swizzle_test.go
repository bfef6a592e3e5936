package screengrab

import (
	"math/rand"
	"testing"
)

func swizzleRef(dst, src []byte, n int) {
	for i := 0; i < n*4; i += 4 {
		dst[i], dst[i+1], dst[i+2], dst[i+3] = src[i+2], src[i+1], src[i], 0xff
	}
}

func TestSwapBGRAtoRGBA(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte // BGRx
		expected []byte // RGBx
	}{
		{
			"blue to red",
			[]byte{0xff, 0x00, 0x00, 0xaa},
			[]byte{0x00, 0x00, 0xff, 0xff},
		},
		{
			"green remains",
			[]byte{0x00, 0xff, 0x00, 0xbb},
			[]byte{0x00, 0xff, 0x00, 0xff},
		},
		{
			"red to blue",
			[]byte{0x00, 0x00, 0xff, 0xcc},
			[]byte{0xff, 0x00, 0x00, 0xff},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, 4)
			swapBGRAtoRGBA(dst, tt.input, 1)
			for i := range dst {
				if dst[i] != tt.expected[i] {
					t.Errorf("byte %d = %#x, want %#x", i, dst[i], tt.expected[i])
				}
			}
		})
	}
}

// TestSwapBGRAtoRGBAWide compares the unrolled path against the scalar
// reference over awkward pixel counts, including tails shorter than one
// block.
func TestSwapBGRAtoRGBAWide(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 63, 64, 65, 1023} {
		src := make([]byte, n*4)
		rng.Read(src)

		want := make([]byte, n*4)
		swizzleRef(want, src, n)

		got := make([]byte, n*4)
		swapBGRAtoRGBAWide(got, src, n)

		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("n=%d: byte %d = %#x, want %#x", n, i, got[i], want[i])
			}
		}
	}
}

func BenchmarkSwapBGRAtoRGBA(b *testing.B) {
	const n = 1920 * 1080
	src := make([]byte, n*4)
	dst := make([]byte, n*4)
	rand.New(rand.NewSource(1)).Read(src)

	b.Run("scalar", func(b *testing.B) {
		b.SetBytes(int64(n * 4))
		for i := 0; i < b.N; i++ {
			swizzleRef(dst, src, n)
		}
	})
	b.Run("wide", func(b *testing.B) {
		b.SetBytes(int64(n * 4))
		for i := 0; i < b.N; i++ {
			swapBGRAtoRGBAWide(dst, src, n)
		}
	})
}
