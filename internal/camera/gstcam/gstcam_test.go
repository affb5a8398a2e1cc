package gstcam

import (
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/attendance/internal/camera"
)

func TestBuildLaunch(t *testing.T) {
	launch := buildLaunch("/dev/video0", camera.DefaultConstraints())

	for _, want := range []string{
		"v4l2src device=/dev/video0",
		"video/x-raw,format=RGB,width=640,height=480",
		"appsink name=sink",
		"max-buffers=1",
	} {
		if !strings.Contains(launch, want) {
			t.Errorf("Expected launch string to contain %q, got %q", want, launch)
		}
	}
}

func TestBuildLaunchWithoutSize(t *testing.T) {
	launch := buildLaunch("/dev/video1", camera.Constraints{})
	if strings.Contains(launch, "width=") {
		t.Errorf("Expected no size caps, got %q", launch)
	}
}

func TestRGBToRGBAHandlesStridePadding(t *testing.T) {
	// 2x2 RGB with rows padded from 6 to 8 bytes
	data := []byte{
		10, 20, 30, 40, 50, 60, 0, 0,
		70, 80, 90, 100, 110, 120, 0, 0,
	}

	img := rgbToRGBA(data, 2, 2, 8)

	tests := []struct {
		x, y    int
		r, g, b uint8
	}{
		{0, 0, 10, 20, 30},
		{1, 0, 40, 50, 60},
		{0, 1, 70, 80, 90},
		{1, 1, 100, 110, 120},
	}
	for _, tt := range tests {
		c := img.RGBAAt(tt.x, tt.y)
		if c.R != tt.r || c.G != tt.g || c.B != tt.b || c.A != 0xff {
			t.Errorf("pixel (%d,%d): expected %d,%d,%d,255 got %v", tt.x, tt.y, tt.r, tt.g, tt.b, c)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		in   interface{}
		want int
		ok   bool
	}{
		{640, 640, true},
		{int32(480), 480, true},
		{uint(320), 320, true},
		{"640", 0, false},
	}
	for _, tt := range tests {
		got, ok := asInt(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("asInt(%v): expected (%d,%v) got (%d,%v)", tt.in, tt.want, tt.ok, got, ok)
		}
	}
}
