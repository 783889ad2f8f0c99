package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/faceprints/internal/constants"
)

var (
	// ErrUnsupportedImage is returned for data no registered decoder accepts
	ErrUnsupportedImage = errors.New("unsupported image format")
	// ErrImageTooLarge is returned for images above constants.MaxImageBytes
	ErrImageTooLarge = errors.New("image too large")
)

// ImageInfo describes an image without decoding its pixels
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// Inspect reads the image header and returns its format and size.
func Inspect(data []byte) (ImageInfo, error) {
	if len(data) > constants.MaxImageBytes {
		return ImageInfo{}, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(data))
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// PrepareImage returns image data ready for upload together with the size of
// the returned image. Images whose longest side exceeds maxSide are
// downscaled and re-encoded as JPEG, anything else is returned unchanged.
func PrepareImage(data []byte, maxSide int) ([]byte, ImageInfo, error) {
	info, err := Inspect(data)
	if err != nil {
		return nil, ImageInfo{}, err
	}
	if maxSide <= 0 || (info.Width <= maxSide && info.Height <= maxSide) {
		return data, info, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("failed to decode image: %w", err)
	}

	var newWidth, newHeight int
	if info.Width > info.Height {
		newWidth = maxSide
		newHeight = max(1, int(float64(info.Height)*float64(maxSide)/float64(info.Width)))
	} else {
		newHeight = maxSide
		newWidth = max(1, int(float64(info.Width)*float64(maxSide)/float64(info.Height)))
	}

	resized := scale(img, newWidth, newHeight)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return nil, ImageInfo{}, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), ImageInfo{Format: "jpeg", Width: newWidth, Height: newHeight}, nil
}

// DHash computes a 64-bit difference hash of an image. Re-encoded or resized
// copies of the same picture produce hashes a few bits apart.
func DHash(data []byte) (uint64, error) {
	if _, err := Inspect(data); err != nil {
		return 0, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode image: %w", err)
	}

	// 9 columns give 8 horizontal differences per row
	small := scale(img, 9, 8)

	var hash uint64
	bit := 63
	for y := range 8 {
		for x := range 8 {
			if luma(small, x, y) > luma(small, x+1, y) {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash, nil
}

// HammingDistance computes the Hamming distance between two 64-bit hashes.
func HammingDistance(hash1, hash2 uint64) int {
	xor := hash1 ^ hash2
	distance := 0
	for xor != 0 {
		distance++
		xor &= xor - 1 // Clear lowest set bit
	}
	return distance
}

// SameImage reports whether two hashes are within constants.DuplicateImageThreshold.
func SameImage(hash1, hash2 uint64) bool {
	return HammingDistance(hash1, hash2) <= constants.DuplicateImageThreshold
}

func scale(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// luma returns the ITU-R BT.601 brightness of a pixel (0-255).
func luma(img *image.RGBA, x, y int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}
