package codec

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/geoseq/sequences-backend-go/internal/models"
)

const sidecarSuffix = ".geo.json"

// SidecarTagger stores geotags in a JSON file next to each image instead of
// rewriting EXIF blocks. The durable sequence log carries the same fields,
// so the sidecar is a convenience for tools that inspect output directories
// directly; swap in an exiftool-backed GeoTagger to write real EXIF.
type SidecarTagger struct{}

func NewSidecarTagger() *SidecarTagger { return &SidecarTagger{} }

// ReadGeoTags loads the sidecar for an image. A missing sidecar is not an
// error; it yields zero-valued fields.
func (t *SidecarTagger) ReadGeoTags(imagePath string) (models.PhotoGeoFields, error) {
	var fields models.PhotoGeoFields

	data, err := os.ReadFile(imagePath + sidecarSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return fields, nil
	}
	if err != nil {
		return fields, &models.CodecError{Image: imagePath, Err: err}
	}

	if err := json.Unmarshal(data, &fields); err != nil {
		return fields, &models.CodecError{Image: imagePath, Err: err}
	}
	return fields, nil
}

// WriteGeoTags writes the sidecar for an image.
func (t *SidecarTagger) WriteGeoTags(imagePath string, fields models.PhotoGeoFields) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return &models.CodecError{Image: imagePath, Err: err}
	}
	if err := os.WriteFile(imagePath+sidecarSuffix, data, 0o644); err != nil {
		return &models.CodecError{Image: imagePath, Err: err}
	}
	return nil
}
