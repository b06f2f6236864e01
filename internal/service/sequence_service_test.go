package service

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoseq/sequences-backend-go/internal/models"
	"github.com/geoseq/sequences-backend-go/internal/nadir"
	"github.com/geoseq/sequences-backend-go/internal/platform/mapillary"
	"github.com/geoseq/sequences-backend-go/internal/platform/mtpweb"
	"github.com/geoseq/sequences-backend-go/internal/store"
	"github.com/geoseq/sequences-backend-go/internal/uploader"
)

// stubCodec satisfies the coordinator's collaborators without pixel work.
type stubCodec struct{}

func (stubCodec) LoadImage(path string) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func (stubCodec) SaveImage(path string, img image.Image) error {
	return os.WriteFile(path, []byte("image"), 0o644)
}

func (stubCodec) ResizeLogo(logo image.Image, width, height int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

func (stubCodec) CompositeOverlay(baseImagePath string, logo image.Image, offsetX, offsetY int) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func (stubCodec) ReadGeoTags(imagePath string) (models.PhotoGeoFields, error) {
	return models.PhotoGeoFields{}, nil
}

func (stubCodec) WriteGeoTags(imagePath string, fields models.PhotoGeoFields) error {
	return nil
}

func newSequenceService(t *testing.T, o *uploader.Orchestrator) (*SequenceService, *store.Store) {
	t.Helper()
	st := store.New(t.TempDir())
	codec := stubCodec{}
	coordinator := nadir.NewCoordinator(codec, codec, codec, t.TempDir())
	tokens := newTokenService(t)
	if o == nil {
		o = uploader.New(nil, nil)
	}
	return NewSequenceService(st, coordinator, o, tokens), st
}

func descriptorFixture(t *testing.T) *models.SequenceDescriptor {
	t.Helper()

	sourceDir := t.TempDir()
	lat1, lon1 := 50.0, 8.0
	lat2, lon2 := 50.001, 8.001
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	points := []models.GeoPoint{
		{Image: "one.jpg", Width: 800, Height: 400, Timestamp: base, Latitude: &lat1, Longitude: &lon1},
		{Image: "two.jpg", Width: 800, Height: 400, Timestamp: base.Add(5 * time.Second), Latitude: &lat2, Longitude: &lon2},
	}
	for _, p := range points {
		require.NoError(t, os.WriteFile(filepath.Join(sourceDir, p.Image), []byte("jpeg"), 0o644))
	}

	return &models.SequenceDescriptor{
		Name:          "Street Tour",
		Description:   "around the block",
		TransportType: "Land",
		Camera:        "GoPro MAX",
		SourceDir:     sourceDir,
		Points:        points,
	}
}

func TestFinalizePersistsDurableRecord(t *testing.T) {
	s, st := newSequenceService(t, nil)
	desc := descriptorFixture(t)

	result, err := s.Finalize(context.Background(), desc, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Sequence.Id)
	assert.Equal(t, "Street Tour", result.Sequence.Name)
	assert.Equal(t, desc.Points[0].Timestamp, result.Sequence.EarliestTime)
	assert.Equal(t, desc.Points[1].Timestamp, result.Sequence.LatestTime)
	assert.Greater(t, result.Sequence.DistanceKm, 0.0)
	assert.Len(t, result.Photo, 2)

	// No destinations were selected: the local record is still written.
	assert.Empty(t, result.Sequence.Destination.Mapillary)
	assert.Empty(t, result.Sequence.Destination.MTP)

	for _, path := range []string{
		st.LogPath(desc.Name),
		st.GpxPath(desc.Name),
		filepath.Join(st.OriginalsPath(desc.Name), "one.jpg"),
		st.OutputPath(desc.Name, store.OutputRaw, "two.jpg"),
	} {
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr, path)
	}

	loaded, err := st.Load(desc.Name)
	require.NoError(t, err)
	assert.Equal(t, result.Sequence.Id, loaded.Sequence.Id)
}

func TestFinalizeValidation(t *testing.T) {
	s, _ := newSequenceService(t, nil)

	var validationErr *models.ValidationError

	_, err := s.Finalize(context.Background(), &models.SequenceDescriptor{Name: "   "}, nil)
	require.True(t, errors.As(err, &validationErr))

	desc := descriptorFixture(t)
	desc.Points = desc.Points[:1]
	_, err = s.Finalize(context.Background(), desc, nil)
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Reason, "more than one image")
}

func TestFinalizeRejectsExistingSequence(t *testing.T) {
	s, _ := newSequenceService(t, nil)
	desc := descriptorFixture(t)

	_, err := s.Finalize(context.Background(), desc, nil)
	require.NoError(t, err)

	_, err = s.Finalize(context.Background(), desc, nil)
	assert.True(t, errors.Is(err, models.ErrAlreadyExists))
}

func TestFinalizeRejectsInFlightDuplicate(t *testing.T) {
	s, _ := newSequenceService(t, nil)
	desc := descriptorFixture(t)

	// Simulate another finalize holding the same normalized name.
	require.NoError(t, s.acquire("street_tour"))
	defer s.release("street_tour")

	_, err := s.Finalize(context.Background(), desc, nil)
	assert.True(t, errors.Is(err, models.ErrAlreadyExists))
}

func TestFinalizeRemovesPreviewTempFiles(t *testing.T) {
	s, _ := newSequenceService(t, nil)
	desc := descriptorFixture(t)

	logo := filepath.Join(t.TempDir(), "logo.png")
	preview := filepath.Join(t.TempDir(), "preview.png")
	require.NoError(t, os.WriteFile(logo, []byte("logo"), 0o644))
	require.NoError(t, os.WriteFile(preview, []byte("preview"), 0o644))
	desc.NadirPreview = models.NadirPreview{
		LogoFile: logo,
		Items:    map[string]string{"0.1": preview},
	}

	_, err := s.Finalize(context.Background(), desc, nil)
	require.NoError(t, err)

	_, err = os.Stat(logo)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(preview)
	assert.True(t, os.IsNotExist(err))
}

// publishServers fakes both platforms well enough for an end-to-end
// finalize, recording every uploaded file body keyed by object key.
func publishServers(t *testing.T, failSessionOpen bool, uploaded map[string][]byte) (mapillaryURL, mtpURL string) {
	t.Helper()

	mapMux := http.NewServeMux()
	var mapSrv *httptest.Server
	mapMux.HandleFunc("/v3/me/uploads", func(w http.ResponseWriter, r *http.Request) {
		if failSessionOpen {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"key":        "session-key",
			"url":        mapSrv.URL + "/bucket",
			"key_prefix": "p/",
		})
	})
	mapMux.HandleFunc("/bucket", func(w http.ResponseWriter, r *http.Request) {
		if uploaded != nil {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			file, _, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			body, err := io.ReadAll(file)
			require.NoError(t, err)
			uploaded[r.FormValue("key")] = body
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mapMux.HandleFunc("/v3/me/uploads/session-key/closed", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mapSrv = httptest.NewServer(mapMux)
	t.Cleanup(mapSrv.Close)

	mtpMux := http.NewServeMux()
	mtpMux.HandleFunc("/api/v1/sequences", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"unique_id": "mtp-42"})
	})
	mtpMux.HandleFunc("/api/v1/sequences/mtp-42/link", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mtpSrv := httptest.NewServer(mtpMux)
	t.Cleanup(mtpSrv.Close)

	return mapSrv.URL, mtpSrv.URL
}

func TestFinalizePublishesToBothDestinations(t *testing.T) {
	uploaded := make(map[string][]byte)
	mapURL, mtpURL := publishServers(t, false, uploaded)
	o := uploader.New(
		mapillary.NewClient(mapURL, "cid", 5*time.Second),
		mtpweb.NewClient(mtpURL, 5*time.Second),
	)
	s, _ := newSequenceService(t, o)
	require.NoError(t, s.tokens.Set(IntegrationMapillary, "map-token"))
	require.NoError(t, s.tokens.Set(IntegrationMTP, "mtp-token"))

	desc := descriptorFixture(t)
	desc.Destinations = models.DestinationSettings{Mapillary: true, MTP: true}

	var progress []string
	result, err := s.Finalize(context.Background(), desc, func(m string) {
		progress = append(progress, m)
	})
	require.NoError(t, err)

	assert.Equal(t, "session-key", result.Sequence.Destination.Mapillary)
	assert.Equal(t, "mtp-42", result.Sequence.Destination.MTP)
	assert.Len(t, progress, 2, "one progress line per uploaded image")
	assert.Len(t, uploaded, 2)
}

func TestFinalizeUploadsFinishedOutputs(t *testing.T) {
	uploaded := make(map[string][]byte)
	mapURL, mtpURL := publishServers(t, false, uploaded)
	o := uploader.New(
		mapillary.NewClient(mapURL, "cid", 5*time.Second),
		mtpweb.NewClient(mtpURL, 5*time.Second),
	)
	s, st := newSequenceService(t, o)
	require.NoError(t, s.tokens.Set(IntegrationMapillary, "map-token"))

	logoFile := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(logoFile, []byte("logo"), 0o644))

	desc := descriptorFixture(t)
	desc.Destinations = models.DestinationSettings{Mapillary: true}
	desc.Steps.AddNadir = true
	desc.NadirPreview = models.NadirPreview{LogoFile: logoFile, Percentage: 0.15}

	result, err := s.Finalize(context.Background(), desc, nil)
	require.NoError(t, err)
	require.Equal(t, "session-key", result.Sequence.Destination.Mapillary)

	// The uploaded bytes are the composited final_nadir outputs, never the
	// untouched source images.
	source, err := os.ReadFile(filepath.Join(desc.SourceDir, "one.jpg"))
	require.NoError(t, err)
	output, err := os.ReadFile(st.OutputPath(desc.Name, store.OutputNadir, "one.jpg"))
	require.NoError(t, err)
	require.NotEqual(t, source, output, "fixture must distinguish source from output")

	require.Len(t, uploaded, 2)
	body, ok := uploaded["p/street_tour_one.jpg"]
	require.True(t, ok, "uploaded keys: %v", uploaded)
	assert.Equal(t, output, body)
	assert.NotEqual(t, source, body)
}

func TestFinalizeSurvivesSessionOpenFailure(t *testing.T) {
	mapURL, mtpURL := publishServers(t, true, nil)
	o := uploader.New(
		mapillary.NewClient(mapURL, "cid", 5*time.Second),
		mtpweb.NewClient(mtpURL, 5*time.Second),
	)
	s, st := newSequenceService(t, o)
	require.NoError(t, s.tokens.Set(IntegrationMapillary, "map-token"))
	require.NoError(t, s.tokens.Set(IntegrationMTP, "mtp-token"))

	desc := descriptorFixture(t)
	desc.Destinations = models.DestinationSettings{Mapillary: true, MTP: true}

	result, err := s.Finalize(context.Background(), desc, nil)
	require.NoError(t, err)

	// The refused destination stays unpublished; the run still completes
	// with durable artifacts and the other destination's record.
	assert.Empty(t, result.Sequence.Destination.Mapillary)
	assert.Equal(t, "mtp-42", result.Sequence.Destination.MTP)

	_, statErr := os.Stat(st.LogPath(desc.Name))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(st.GpxPath(desc.Name))
	assert.NoError(t, statErr)
}

func TestListReconcilesAgainstRemote(t *testing.T) {
	s, _ := newSequenceService(t, nil)
	desc := descriptorFixture(t)

	_, err := s.Finalize(context.Background(), desc, nil)
	require.NoError(t, err)

	summaries, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Street Tour", summaries[0].Name)
	assert.Equal(t, 2, summaries[0].Points)
}

func TestRemoveAndReset(t *testing.T) {
	s, st := newSequenceService(t, nil)
	desc := descriptorFixture(t)

	_, err := s.Finalize(context.Background(), desc, nil)
	require.NoError(t, err)

	require.NoError(t, s.Remove(desc.Name))
	_, statErr := os.Stat(st.SequencePath(desc.Name))
	assert.True(t, os.IsNotExist(statErr))

	// Reset on a never-started sequence is a no-op.
	assert.NoError(t, s.Reset(&models.SequenceDescriptor{Name: "never started"}))
}
