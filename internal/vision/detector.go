// Package vision extracts a single colored target from a video frame using
// HSV thresholding and contour analysis (GoCV / OpenCV).
package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// ColorRange is an inclusive HSV range on the OpenCV scale
// (H in [0,179], S and V in [0,255]).
type ColorRange struct {
	HMin float64 `json:"h_min" yaml:"h_min"`
	HMax float64 `json:"h_max" yaml:"h_max"`
	SMin float64 `json:"s_min" yaml:"s_min"`
	SMax float64 `json:"s_max" yaml:"s_max"`
	VMin float64 `json:"v_min" yaml:"v_min"`
	VMax float64 `json:"v_max" yaml:"v_max"`
}

// Lower returns the lower bound as a GoCV scalar.
func (r ColorRange) Lower() gocv.Scalar {
	return gocv.NewScalar(r.HMin, r.SMin, r.VMin, 0)
}

// Upper returns the upper bound as a GoCV scalar.
func (r ColorRange) Upper() gocv.Scalar {
	return gocv.NewScalar(r.HMax, r.SMax, r.VMax, 0)
}

// GreenCube is the range used for the green face of a Rubik's cube.
var GreenCube = ColorRange{HMin: 40, HMax: 80, SMin: 50, SMax: 255, VMin: 50, VMax: 255}

// Params configures a detection pass.
type Params struct {
	Range ColorRange
	// MinArea rejects contours whose area is not strictly greater.
	MinArea float64
	// Blur is the Gaussian kernel size applied before thresholding.
	// Zero disables blurring; even sizes are rounded up to the next odd size.
	Blur int
}

// Target is the detected object in image coordinates.
type Target struct {
	Centroid image.Point `json:"centroid"`
	Area     float64     `json:"area"`
}

// Detect finds the target in a BGR frame.
//
// Algorithm:
// 1. Optional Gaussian blur
// 2. Convert BGR to HSV and threshold against the color range
// 3. One erosion and one dilation with the default 3x3 kernel
// 4. Find external contours
// 5. Keep the contour with the largest area above MinArea
//
// Ties keep the first contour scanned. The centroid is the center of the
// contour's bounding box. Returns nil when no contour qualifies.
func Detect(frame gocv.Mat, p Params) *Target {
	if frame.Empty() {
		return nil
	}

	mask := Mask(frame, p)
	defer mask.Close()

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	var best *Target
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area <= p.MinArea {
			continue
		}
		if best != nil && area <= best.Area {
			continue
		}

		rect := gocv.BoundingRect(contour)
		best = &Target{
			Centroid: image.Point{
				X: rect.Min.X + rect.Dx()/2,
				Y: rect.Min.Y + rect.Dy()/2,
			},
			Area: area,
		}
	}

	return best
}

// Mask returns the cleaned binary mask for the color range.
// The caller is responsible for closing the returned Mat.
func Mask(frame gocv.Mat, p Params) gocv.Mat {
	src := frame
	if p.Blur > 0 {
		k := p.Blur
		if k%2 == 0 {
			k++
		}
		blurred := gocv.NewMat()
		defer blurred.Close()
		gocv.GaussianBlur(frame, &blurred, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault)
		src = blurred
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(src, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv, p.Range.Lower(), p.Range.Upper(), &mask)

	// An empty kernel makes OpenCV use its default 3x3 rectangle.
	kernel := gocv.NewMat()
	defer kernel.Close()
	gocv.Erode(mask, &mask, kernel)
	gocv.Dilate(mask, &mask, kernel)

	return mask
}

// Resize scales frame in place to width x height when it differs.
// Non-positive sizes leave the frame untouched.
func Resize(frame *gocv.Mat, width, height int) {
	if frame == nil || frame.Empty() || width <= 0 || height <= 0 {
		return
	}
	if frame.Cols() == width && frame.Rows() == height {
		return
	}
	gocv.Resize(*frame, frame, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)
}
