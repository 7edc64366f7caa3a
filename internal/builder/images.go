package builder

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// fitWithin scales w×h down to fit maxW×maxH, keeping the aspect ratio.
// Images already inside the bounds are left alone.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 || (w <= maxW && h <= maxH) {
		return w, h
	}
	scale := float64(maxW) / float64(w)
	if hs := float64(maxH) / float64(h); hs < scale {
		scale = hs
	}
	nw := int(float64(w)*scale + 0.5)
	nh := int(float64(h)*scale + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// prepareCover fits src into the configured bounds and writes it as JPEG.
func prepareCover(src, dst string, maxW, maxH, quality int) error {
	img, err := decodeImage(src)
	if err != nil {
		return err
	}
	bounds := img.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), maxW, maxH)
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), img, bounds, draw.Over, nil)
	return writeJPEG(dst, canvas, quality)
}

// convertWebP re-encodes a WebP image as JPEG and returns the new name.
func convertWebP(dir, name string, quality int) (string, error) {
	img, err := decodeImage(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	bounds := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Over)
	jpgName := strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
	if err := writeJPEG(filepath.Join(dir, jpgName), canvas, quality); err != nil {
		return "", err
	}
	_ = os.Remove(filepath.Join(dir, name))
	return jpgName, nil
}
