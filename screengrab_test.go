package screengrab

import (
	"errors"
	"testing"
)

// The tests below talk to a real display server and skip when none is
// attached, so the package can be tested headless via the fake pool tests.

func TestCaptureRect(t *testing.T) {
	if NumActiveDisplays() == 0 {
		t.Skip("no displays attached")
	}
	bounds, err := GetDisplayBounds(0)
	if err != nil {
		t.Fatal(err)
	}
	img, err := CaptureRect(bounds)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != bounds.Dx() || img.Bounds().Dy() != bounds.Dy() {
		t.Errorf("image size mismatch: expected %dx%d, got %dx%d",
			bounds.Dx(), bounds.Dy(), img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestGetDisplayBoundsInvalidIndex(t *testing.T) {
	count := NumActiveDisplays()
	if count == 0 {
		t.Skip("no displays attached")
	}
	if _, err := GetDisplayBounds(-1); !errors.Is(err, ErrInvalidMonitor) {
		t.Errorf("negative index: got %v, want ErrInvalidMonitor", err)
	}
	if _, err := GetDisplayBounds(count); !errors.Is(err, ErrInvalidMonitor) {
		t.Errorf("index %d of %d: got %v, want ErrInvalidMonitor", count, count, err)
	}
}

func TestSessionAgainstDisplay(t *testing.T) {
	if NumActiveDisplays() == 0 {
		t.Skip("no displays attached")
	}
	bounds, err := GetDisplayBounds(0)
	if err != nil {
		t.Fatal(err)
	}
	if bounds.Dx() < 64 || bounds.Dy() < 64 {
		t.Skipf("display too small: %v", bounds)
	}

	s, err := NewSession(0, bounds.Min.X, bounds.Min.Y, 64, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	f1, err := s.Capture()
	if err != nil {
		t.Fatal(err)
	}
	if len(f1.Bytes) != f1.Stride*f1.Height {
		t.Errorf("buffer is %d bytes, want %d", len(f1.Bytes), f1.Stride*f1.Height)
	}

	if err := s.Resize(bounds.Min.X, bounds.Min.Y, 32, 48); err != nil {
		t.Fatal(err)
	}
	f2, err := s.Capture()
	if err != nil {
		t.Fatal(err)
	}
	if f2.Width != 32 || f2.Height != 48 {
		t.Errorf("frame is %dx%d after resize, want 32x48", f2.Width, f2.Height)
	}
}

func BenchmarkCaptureRect(b *testing.B) {
	if NumActiveDisplays() == 0 {
		b.Skip("no displays attached")
	}
	bounds, err := GetDisplayBounds(0)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := CaptureRect(bounds); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSessionCapture measures the steady-state path the package is
// built for: repeated captures of one region with no reallocation.
func BenchmarkSessionCapture(b *testing.B) {
	if NumActiveDisplays() == 0 {
		b.Skip("no displays attached")
	}
	bounds, err := GetDisplayBounds(0)
	if err != nil {
		b.Fatal(err)
	}
	s, err := NewSession(0, bounds.Min.X, bounds.Min.Y, bounds.Dx(), bounds.Dy())
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Capture(); err != nil {
			b.Fatal(err)
		}
	}
}
