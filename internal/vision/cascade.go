package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/detect"
)

// cascadeDirs are common OpenCV install locations searched after the
// configured path.
var cascadeDirs = []string{
	"/usr/local/share/opencv4/haarcascades",
	"/usr/share/opencv4/haarcascades",
	"/opt/homebrew/share/opencv4/haarcascades",
	"/usr/share/opencv/haarcascades",
}

// CascadeDetector finds frontal faces with an OpenCV Haar cascade.
type CascadeDetector struct {
	path    string
	minSize int

	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	loaded     bool
}

var _ detect.Detector = (*CascadeDetector)(nil)

// NewCascadeDetector creates a detector. path may be empty or a directory;
// minSize is the smallest face edge in pixels.
func NewCascadeDetector(path string, minSize int) *CascadeDetector {
	if minSize <= 0 {
		minSize = constants.DefaultMinFaceSize
	}
	return &CascadeDetector{path: path, minSize: minSize}
}

func (d *CascadeDetector) candidates() []string {
	var paths []string
	if d.path != "" {
		if filepath.Ext(d.path) == ".xml" {
			paths = append(paths, d.path)
		} else {
			paths = append(paths, filepath.Join(d.path, constants.DefaultCascadeFile))
		}
	}
	paths = append(paths, constants.DefaultCascadeFile)
	for _, dir := range cascadeDirs {
		paths = append(paths, filepath.Join(dir, constants.DefaultCascadeFile))
	}
	return paths
}

// Load reads the cascade from the first path that works.
func (d *CascadeDetector) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return nil
	}

	classifier := gocv.NewCascadeClassifier()
	for _, path := range d.candidates() {
		if err := ctx.Err(); err != nil {
			classifier.Close()
			return err
		}
		if classifier.Load(path) {
			slog.Info("vision: cascade loaded", "path", path)
			d.classifier = classifier
			d.loaded = true
			return nil
		}
	}
	classifier.Close()
	return fmt.Errorf("failed to load face cascade from %v", d.candidates())
}

// Detect returns the largest face in img, or nil if there is none.
func (d *CascadeDetector) Detect(ctx context.Context, img image.Image) (*detect.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	equalized := gocv.NewMat()
	defer equalized.Close()
	gocv.EqualizeHist(gray, &equalized)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return nil, fmt.Errorf("cascade not loaded")
	}

	faces := d.classifier.DetectMultiScaleWithParams(
		equalized,
		1.1, // scale factor
		4,   // min neighbors
		0,
		image.Pt(d.minSize, d.minSize),
		image.Point{},
	)
	if len(faces) == 0 {
		return nil, nil
	}

	largest := faces[0]
	for _, f := range faces[1:] {
		if f.Dx()*f.Dy() > largest.Dx()*largest.Dy() {
			largest = f
		}
	}
	return &detect.Detection{Box: largest, Faces: len(faces)}, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return nil
	}
	d.loaded = false
	return d.classifier.Close()
}
