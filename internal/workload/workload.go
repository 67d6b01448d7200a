// Package workload is a small deterministic image inference pipeline used to
// exercise the profiler. Every function is instrumented with hook.Enter and
// math kernels are called through hook.Native.
package workload

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/getsentry/callprof/pkg/hook"
)

// ErrDegenerateImage is returned for images whose pixels all have the same
// value, which can't be normalized.
var ErrDegenerateImage = errors.New("degenerate image")

type (
	Image struct {
		Width  int
		Height int
		Pixels []float64
	}

	Tensor []float64

	Detection struct {
		X     int
		Y     int
		Score float64
	}

	Dataset struct {
		images []Image
	}

	Predictor struct {
		Width     int
		Height    int
		Threshold float64
		// Radius is the distance under which two detections overlap.
		Radius float64
	}
)

// NewDataset generates n random images. The same seed always generates the
// same images.
func NewDataset(n, width, height int, seed int64) *Dataset {
	defer hook.Enter()()
	r := rand.New(rand.NewSource(seed))
	d := &Dataset{images: make([]Image, 0, n)}
	for i := 0; i < n; i++ {
		img := Image{Width: width, Height: height, Pixels: make([]float64, width*height)}
		for j := range img.Pixels {
			img.Pixels[j] = r.Float64() * 255
		}
		d.images = append(d.images, img)
	}
	return d
}

func (d *Dataset) Images() []Image {
	defer hook.Enter()()
	return d.images
}

func NewPredictor(width, height int) *Predictor {
	defer hook.Enter()()
	return &Predictor{
		Width:     width,
		Height:    height,
		Threshold: 0.6,
		Radius:    2,
	}
}

// Preprocess normalizes the image to zero mean and unit variance and resizes
// it to the predictor's input size.
func (p *Predictor) Preprocess(img Image) (Tensor, error) {
	defer hook.Enter()()
	normalized, err := normalize(img.Pixels)
	if err != nil {
		return nil, fmt.Errorf("workload: preprocess: %w", err)
	}
	return resize(normalized, img.Width, img.Height, p.Width, p.Height), nil
}

func normalize(pixels []float64) (Tensor, error) {
	defer hook.Enter()()
	var mean float64
	for _, v := range pixels {
		mean += v
	}
	mean /= float64(len(pixels))
	var variance float64
	for _, v := range pixels {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(pixels))

	var std float64
	err := hook.Native(math.Sqrt, func() error {
		if variance == 0 {
			return ErrDegenerateImage
		}
		std = math.Sqrt(variance)
		return nil
	})
	if err != nil {
		return nil, err
	}

	t := make(Tensor, len(pixels))
	for i, v := range pixels {
		t[i] = (v - mean) / std
	}
	return t, nil
}

// resize scales a width×height tensor to w×h with nearest neighbor sampling.
func resize(t Tensor, width, height, w, h int) Tensor {
	defer hook.Enter()()
	out := make(Tensor, w*h)
	for y := 0; y < h; y++ {
		sy := y * height / h
		for x := 0; x < w; x++ {
			sx := x * width / w
			out[y*w+x] = t[sy*width+sx]
		}
	}
	return out
}

// Postprocess keeps the scores above the threshold and suppresses the ones
// overlapping a better detection.
func (p *Predictor) Postprocess(preds Tensor) ([]Detection, error) {
	defer hook.Enter()()
	var candidates []Detection
	for i, score := range preds {
		if score >= p.Threshold {
			candidates = append(candidates, Detection{X: i % p.Width, Y: i / p.Width, Score: score})
		}
	}
	return p.suppress(candidates)
}

// suppress is a greedy non-maximum suppression.
func (p *Predictor) suppress(candidates []Detection) ([]Detection, error) {
	defer hook.Enter()()
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	var kept []Detection
	for _, c := range candidates {
		overlaps := false
		for _, k := range kept {
			var d float64
			if err := hook.Native(math.Hypot, func() error {
				d = math.Hypot(float64(c.X-k.X), float64(c.Y-k.Y))
				return nil
			}); err != nil {
				return nil, err
			}
			if d < p.Radius {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// Run feeds every image of the dataset through the pipeline, iterations
// times, and returns the number of detections.
func Run(iterations int, d *Dataset, p *Predictor, m *Model) (int, error) {
	defer hook.Enter()()
	count := 0
	for i := 0; i < iterations; i++ {
		for _, img := range d.Images() {
			preprocessed, err := p.Preprocess(img)
			if err != nil {
				return count, err
			}
			preds, err := m.Forward(preprocessed)
			if err != nil {
				return count, err
			}
			detections, err := p.Postprocess(preds)
			if err != nil {
				return count, err
			}
			count += len(detections)
		}
	}
	return count, nil
}
