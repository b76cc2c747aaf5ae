package layout

import "testing"

func TestCrop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		w, h int
		want Rect
	}{
		{name: "landscape 16:9", w: 1920, h: 1080, want: Rect{X: 656, Y: 0, W: 607, H: 1080}},
		{name: "already vertical", w: 1080, h: 1920, want: Rect{X: 0, Y: 0, W: 1080, H: 1920}},
		{name: "square", w: 1000, h: 1000, want: Rect{X: 219, Y: 0, W: 562, H: 1000}},
		{name: "very tall", w: 720, h: 2560, want: Rect{X: 0, Y: 640, W: 720, H: 1280}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Crop(tc.w, tc.h)
			if err != nil {
				t.Fatalf("crop: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Crop(%d,%d) = %+v, want %+v", tc.w, tc.h, got, tc.want)
			}
			if got.X+got.W > tc.w || got.Y+got.H > tc.h {
				t.Fatalf("crop window %+v exceeds %dx%d", got, tc.w, tc.h)
			}
		})
	}
}

func TestCrop_InvalidSize(t *testing.T) {
	if _, err := Crop(0, 1080); err == nil {
		t.Fatalf("expected error for zero width")
	}
}

func TestFilter_AlwaysScalesToTarget(t *testing.T) {
	for _, sz := range [][2]int{{1920, 1080}, {640, 480}, {1080, 1920}, {400, 1200}} {
		f, err := Filter(sz[0], sz[1])
		if err != nil {
			t.Fatalf("filter: %v", err)
		}
		want := "scale=1080:1920,setsar=1"
		if len(f) < len(want) || f[len(f)-len(want):] != want {
			t.Fatalf("Filter(%d,%d) = %q, want suffix %q", sz[0], sz[1], f, want)
		}
	}
}
