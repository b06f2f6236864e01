package codec

import (
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/geoseq/sequences-backend-go/internal/models"
)

// DrawEditor is the stdlib ImageEditor: jpeg/png decode, nearest-neighbor
// scaling and draw.Over compositing. Fast enough for per-sequence batch
// work; scaling quality matters little for a nadir logo.
type DrawEditor struct{}

func NewDrawEditor() *DrawEditor { return &DrawEditor{} }

// LoadImage decodes a jpeg or png file.
func (e *DrawEditor) LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.CodecError{Image: path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &models.CodecError{Image: path, Err: err}
	}
	return img, nil
}

// SaveImage encodes by file extension; jpeg unless the path ends in .png.
func (e *DrawEditor) SaveImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return &models.CodecError{Image: path, Err: err}
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".png") {
		err = png.Encode(f, img)
	} else {
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 92})
	}
	if err != nil {
		return &models.CodecError{Image: path, Err: err}
	}
	return nil
}

// ResizeLogo scales the logo to width x height with nearest-neighbor
// sampling.
func (e *DrawEditor) ResizeLogo(logo image.Image, width, height int) image.Image {
	return scaleNearest(logo, width, height)
}

// CompositeOverlay decodes the base image and draws the logo over it at the
// given offset.
func (e *DrawEditor) CompositeOverlay(baseImagePath string, logo image.Image, offsetX, offsetY int) (image.Image, error) {
	base, err := e.LoadImage(baseImagePath)
	if err != nil {
		return nil, err
	}

	b := base.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), base, b.Min, draw.Src)

	lb := logo.Bounds()
	target := image.Rect(offsetX, offsetY, offsetX+lb.Dx(), offsetY+lb.Dy())
	draw.Draw(dst, target, logo, lb.Min, draw.Over)

	return dst, nil
}

func scaleNearest(src image.Image, w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}

	sb := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := sb.Min.Y + y*sb.Dy()/h
		for x := 0; x < w; x++ {
			sx := sb.Min.X + x*sb.Dx()/w
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}
