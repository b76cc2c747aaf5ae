package layout

import "fmt"

const (
	TargetWidth  = 1080
	TargetHeight = 1920
)

// Rect is a crop window in source pixels.
type Rect struct {
	X, Y int
	W, H int
}

// Crop returns the centered window of a w×h frame that has the target
// aspect ratio. Wider sources lose columns, taller ones lose rows.
func Crop(w, h int) (Rect, error) {
	if w <= 0 || h <= 0 {
		return Rect{}, fmt.Errorf("invalid frame size %dx%d", w, h)
	}
	target := float64(TargetWidth) / float64(TargetHeight)
	if float64(w)/float64(h) > target {
		cw := int(float64(h) * target)
		x := int(float64(w)/2 - float64(cw)/2)
		return Rect{X: x, Y: 0, W: cw, H: h}, nil
	}
	ch := int(float64(w) / target)
	y := int(float64(h)/2 - float64(ch)/2)
	return Rect{X: 0, Y: y, W: w, H: ch}, nil
}

// Filter builds the ffmpeg video filter chain that crops and scales to
// exactly TargetWidth×TargetHeight.
func Filter(w, h int) (string, error) {
	r, err := Crop(w, h)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("crop=%d:%d:%d:%d,scale=%d:%d,setsar=1",
		r.W, r.H, r.X, r.Y, TargetWidth, TargetHeight), nil
}
