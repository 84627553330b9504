package data

import (
	"fmt"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
)

// ImageNet channel statistics used for input normalization.
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// LoadImage decodes, resizes and normalizes an image into CHW float32
// layout of length 3*height*width.
func LoadImage(path string, height, width int) ([]float32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	src, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", path, err)
	}

	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(resized, resized.Bounds(), src, src.Bounds(), draw.Src, nil)

	return normalizeRGBA(resized, height, width), nil
}

func normalizeRGBA(img *image.RGBA, height, width int) []float32 {
	out := make([]float32, 3*height*width)
	plane := height * width
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			offset := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := float32(img.Pix[offset+c]) / 255
				out[c*plane+y*width+x] = (v - imagenetMean[c]) / imagenetStd[c]
			}
		}
	}
	return out
}
