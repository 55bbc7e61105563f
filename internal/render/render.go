// Package render draws punch feedback onto camera frames and prepares them
// for streaming.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/ayusman/jabcam/internal/punch"
	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when asked to encode or resize a frame with no pixels.
var ErrEmptyFrame = errors.New("frame is empty")

// DefaultJPEGQuality is used by EncodeJPEG when quality is out of range.
const DefaultJPEGQuality = 80

var (
	colorBanner   = color.RGBA{R: 255, A: 255}
	colorText     = color.RGBA{G: 255, A: 255}
	colorShoulder = color.RGBA{R: 255, G: 200, B: 0, A: 255}
	colorWrist    = color.RGBA{R: 0, G: 200, B: 255, A: 255}
	colorHUD      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Banner text per side.
var bannerText = [2]string{
	punch.Left:  "LEFT PUNCH!",
	punch.Right: "RIGHT PUNCH!",
}

// Banner positions follow the classic layout: left on the first line,
// right on the second.
var bannerOrigin = [2]image.Point{
	punch.Left:  {X: 50, Y: 50},
	punch.Right: {X: 50, Y: 100},
}

// Annotate draws joint markers, per-side speeds and punch banners on frame.
// obs may be nil when no pose was found; only banners are drawn then.
func Annotate(frame *gocv.Mat, obs *punch.FrameObservation, res punch.ClassificationResult) {
	if frame == nil || frame.Empty() {
		return
	}

	if obs != nil {
		for _, side := range punch.Sides {
			drawJoint(frame, obs.Shoulder(side), colorShoulder)
			drawJoint(frame, obs.Wrist(side), colorWrist)
			gocv.Line(frame, toPoint(obs.Shoulder(side)), toPoint(obs.Wrist(side)), colorShoulder, 2)
		}

		h := frame.Rows()
		for i, side := range punch.Sides {
			text := fmt.Sprintf("%s: %.0f px/s", side, res.SpeedAvg(side))
			gocv.PutText(frame, text, image.Point{X: 10, Y: h - 40 + i*25}, gocv.FontHersheySimplex, 0.6, colorText, 2)
		}
	}

	for _, side := range punch.Sides {
		if res.Punch(side) {
			gocv.PutText(frame, bannerText[side], bannerOrigin[side], gocv.FontHersheySimplex, 2, colorBanner, 3)
		}
	}
}

// HUD draws lines of status text in the top right corner.
func HUD(frame *gocv.Mat, lines ...string) {
	if frame == nil || frame.Empty() {
		return
	}

	w := frame.Cols()
	for i, line := range lines {
		size := gocv.GetTextSize(line, gocv.FontHersheySimplex, 0.7, 2)
		org := image.Point{X: w - size.X - 10, Y: 30 + i*30}
		gocv.PutText(frame, line, org, gocv.FontHersheySimplex, 0.7, colorHUD, 2)
	}
}

// Fit resizes frame to width x height. A zero dimension keeps the aspect
// ratio from the other one; both zero returns a clone. The caller must
// close the returned Mat.
func Fit(frame *gocv.Mat, width, height int) (gocv.Mat, error) {
	if frame == nil || frame.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}
	if width < 0 || height < 0 {
		return gocv.NewMat(), fmt.Errorf("invalid size %dx%d", width, height)
	}

	cols, rows := frame.Cols(), frame.Rows()
	width, height = FitSize(cols, rows, width, height)
	if width == cols && height == rows {
		return frame.Clone(), nil
	}

	dst := gocv.NewMat()
	gocv.Resize(*frame, &dst, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)
	return dst, nil
}

// FitSize resolves the output size Fit will use for a cols x rows frame.
func FitSize(cols, rows, width, height int) (int, int) {
	switch {
	case width == 0 && height == 0:
		return cols, rows
	case width == 0:
		return max(1, cols*height/rows), height
	case height == 0:
		return width, max(1, rows*width/cols)
	}
	return width, height
}

// EncodeJPEG encodes frame as JPEG. Quality outside 1..100 uses DefaultJPEGQuality.
func EncodeJPEG(frame *gocv.Mat, quality int) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *frame, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory that Close frees.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

func drawJoint(frame *gocv.Mat, p punch.Point2D, c color.RGBA) {
	gocv.Circle(frame, toPoint(p), 8, c, -1)
}

func toPoint(p punch.Point2D) image.Point {
	return image.Point{X: int(p.X), Y: int(p.Y)}
}
