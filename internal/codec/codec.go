// Package codec holds the image collaborator contract the finalization
// coordinator sequences: logo resizing, overlay compositing and geotag
// read/write. The coordinator only does geometry arithmetic; everything
// pixel-level lives behind these interfaces.
package codec

import (
	"image"

	"github.com/geoseq/sequences-backend-go/internal/models"
)

// ImageEditor resizes logos and composites them over base images.
type ImageEditor interface {
	ResizeLogo(logo image.Image, width, height int) image.Image
	CompositeOverlay(baseImagePath string, logo image.Image, offsetX, offsetY int) (image.Image, error)
}

// LogoLoader loads a logo image from disk.
type LogoLoader interface {
	LoadImage(path string) (image.Image, error)
	SaveImage(path string, img image.Image) error
}

// GeoTagger reads and writes the positioning tags of one image file.
type GeoTagger interface {
	ReadGeoTags(imagePath string) (models.PhotoGeoFields, error)
	WriteGeoTags(imagePath string, fields models.PhotoGeoFields) error
}
