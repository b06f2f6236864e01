// Package nadir coordinates logo compositing for a sequence: generating the
// candidate preview set and applying the chosen logo size to every photo
// while assembling the final per-photo export metadata.
package nadir

import (
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/geoseq/sequences-backend-go/internal/codec"
	"github.com/geoseq/sequences-backend-go/internal/models"
	"github.com/geoseq/sequences-backend-go/internal/store"
)

// PreviewSteps is the number of candidate logo heights offered to the user,
// from PreviewMinPercent upward in 1% steps.
const (
	PreviewSteps      = 16
	PreviewMinPercent = 10
)

// Coordinator sequences the image-codec collaborator calls for previews and
// the final apply pass. It owns no pixel work itself.
type Coordinator struct {
	editor  codec.ImageEditor
	images  codec.LogoLoader
	tagger  codec.GeoTagger
	tempDir string
}

// NewCoordinator wires a coordinator. tempDir receives the preview temp
// files; pass "" for the system temp directory.
func NewCoordinator(editor codec.ImageEditor, images codec.LogoLoader, tagger codec.GeoTagger, tempDir string) *Coordinator {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Coordinator{editor: editor, images: images, tagger: tagger, tempDir: tempDir}
}

// GeneratePreviews composites the logo onto the target image at each of the
// 16 candidate heights (10%..25% of the image height), strictly one at a
// time so temp naming and cleanup stay deterministic. The first failure
// aborts the remaining composites, removes everything already produced and
// surfaces the error; a partial preview set is never reported as success.
func (c *Coordinator) GeneratePreviews(logoPath, imagePath string, width, height int) (*models.NadirPreview, error) {
	logo, err := c.images.LoadImage(logoPath)
	if err != nil {
		return nil, err
	}

	tempLogo := filepath.Join(c.tempDir, uuid.NewString()+".png")
	if err := c.images.SaveImage(tempLogo, logo); err != nil {
		return nil, err
	}

	preview := &models.NadirPreview{
		LogoFile: tempLogo,
		Items:    make(map[string]string, PreviewSteps),
	}

	for step := 0; step < PreviewSteps; step++ {
		percentage := float64(PreviewMinPercent+step) / 100
		logoHeight := int(math.Round(float64(height) * percentage))

		resized := c.editor.ResizeLogo(logo, width, logoHeight)
		composited, err := c.editor.CompositeOverlay(imagePath, resized, 0, height-logoHeight)
		if err != nil {
			store.RemovePreviewFiles(preview)
			return nil, err
		}

		outFile := filepath.Join(c.tempDir, uuid.NewString()+".png")
		if err := c.images.SaveImage(outFile, composited); err != nil {
			store.RemovePreviewFiles(preview)
			return nil, err
		}

		preview.Items[strconv.FormatFloat(percentage, 'g', -1, 64)] = outFile
	}

	return preview, nil
}

// Apply finalizes every photo of the sequence in point order: composite the
// chosen logo (resized once) into final_nadir, or copy the untouched image
// into final_raw when no nadir was selected, then persist the corrected
// geotags. Returns one ExportPhoto per source image with both the original
// and the corrected fields, plus the variant directory that received the
// finished images; that variant is what gets published.
func (c *Coordinator) Apply(seq *models.SequenceDescriptor, points []models.GeoPoint, st *store.Store) (map[string]models.ExportPhoto, store.OutputVariant, error) {
	var logo image.Image
	variant := store.OutputRaw

	if seq.Steps.AddNadir && seq.NadirPreview.LogoFile != "" && len(points) > 0 {
		loaded, err := c.images.LoadImage(seq.NadirPreview.LogoFile)
		if err != nil {
			return nil, variant, err
		}
		logoHeight := int(math.Round(float64(points[0].Height) * seq.NadirPreview.Percentage))
		logo = c.editor.ResizeLogo(loaded, points[0].Width, logoHeight)
		variant = store.OutputNadir
	}

	var copyright string
	if seq.Steps.AddCopyright {
		copyright = seq.Copyright
	}

	photos := make(map[string]models.ExportPhoto, len(points))
	for i := range points {
		point := &points[i]
		sourcePath := filepath.Join(st.OriginalsPath(seq.Name), point.Image)
		outputPath := st.OutputPath(seq.Name, variant, point.Image)

		original, err := c.tagger.ReadGeoTags(sourcePath)
		if err != nil {
			return nil, variant, err
		}

		if logo != nil {
			composited, err := c.editor.CompositeOverlay(sourcePath, logo, 0, point.Height-logo.Bounds().Dy())
			if err != nil {
				return nil, variant, err
			}
			if err := c.images.SaveImage(outputPath, composited); err != nil {
				return nil, variant, err
			}
		} else if err := copyFile(sourcePath, outputPath); err != nil {
			return nil, variant, &models.CodecError{Image: point.Image, Err: err}
		}

		modified := exportFields(point, copyright)
		if err := c.tagger.WriteGeoTags(outputPath, modified); err != nil {
			return nil, variant, err
		}

		photos[point.Image] = models.ExportPhoto{Original: original, Modified: modified}
	}

	return photos, variant, nil
}

func exportFields(point *models.GeoPoint, copyright string) models.PhotoGeoFields {
	fields := models.PhotoGeoFields{
		GPSDateTime: point.Timestamp.UTC().Format(time.RFC3339),
		Copyright:   copyright,
	}
	if point.Latitude != nil {
		fields.Latitude = *point.Latitude
	}
	if point.Longitude != nil {
		fields.Longitude = *point.Longitude
	}
	if point.Altitude != nil {
		fields.Altitude = *point.Altitude
	}
	if point.Azimuth != nil {
		fields.Heading = *point.Azimuth
	}
	if point.Pitch != nil {
		fields.Pitch = *point.Pitch
	}
	return fields
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
