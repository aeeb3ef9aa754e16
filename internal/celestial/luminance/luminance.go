// Package luminance classifies fetched images as dark or light by sampling
// decoded pixels. Every failure path resolves to dark: unreadable
// light-on-light text is a worse outcome than unnecessary light-on-dark
// contrast.
package luminance

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"math"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
)

// DarkThreshold is the mean-luminance boundary; a mean strictly below it
// classifies as dark, so exactly 0.5 resolves dark.
const DarkThreshold = 0.5

// DefaultStride is the sampling step in pixels. Density is a latency
// trade-off, not a correctness requirement.
const DefaultStride = 10

// maxImageBytes bounds how much of a remote image is read before decode.
const maxImageBytes = 32 << 20

// Analyzer fetches and decodes images off any rendering path and computes
// average perceptual luminance over a strided pixel sample.
type Analyzer struct {
	client *http.Client
	stride int
}

func NewAnalyzer(client *http.Client, stride int) *Analyzer {
	if stride <= 0 {
		stride = DefaultStride
	}
	return &Analyzer{
		client: client,
		stride: stride,
	}
}

// IsDark fetches the image at url and reports whether it should be treated
// as a dark background. Fetch, sniff, and decode failures all resolve dark.
func (a *Analyzer) IsDark(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return true
	}

	resp, err := a.client.Do(req)
	if err != nil {
		log.Printf("luminance: fetch failed for %s: %v", url, err)
		return true
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("luminance: unexpected status %d for %s", resp.StatusCode, url)
		return true
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return true
	}

	if kind := mimetype.Detect(data); !kind.Is("image/jpeg") && !kind.Is("image/png") && !kind.Is("image/gif") {
		// Not a raster format we can decode; assume a dark-themed surface.
		return true
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Printf("luminance: decode failed for %s: %v", url, err)
		return true
	}

	return IsDarkImage(img, a.stride)
}

// IsDarkImage classifies an already-decoded image. Deterministic for a
// fixed image and stride.
func IsDarkImage(img image.Image, stride int) bool {
	mean, ok := MeanLuminance(img, stride)
	if !ok {
		return true
	}
	return mean < DarkThreshold
}

// MeanLuminance samples the image at the given stride and returns the mean
// perceptual luminance in [0,1]. The second result is false when the
// sample set is empty.
func MeanLuminance(img image.Image, stride int) (float64, bool) {
	if stride <= 0 {
		stride = DefaultStride
	}

	bounds := img.Bounds()
	var sum float64
	var count int

	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			r, g, b, _ := img.At(x, y).RGBA()
			sum += pixelLuminance(r, g, b)
			count++
		}
	}

	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// pixelLuminance converts 16-bit sRGB channels to linear light and applies
// the Rec. 709 luminance coefficients.
func pixelLuminance(r, g, b uint32) float64 {
	return 0.2126*linearize(r) + 0.7152*linearize(g) + 0.0722*linearize(b)
}

// linearize applies the standard sRGB gamma expansion to a 16-bit channel.
func linearize(c uint32) float64 {
	v := float64(c) / 0xffff
	if v <= 0.03928 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}
