package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geoseq/sequences-backend-go/internal/models"
	"github.com/geoseq/sequences-backend-go/internal/nadir"
	"github.com/geoseq/sequences-backend-go/internal/processor"
	"github.com/geoseq/sequences-backend-go/internal/store"
	"github.com/geoseq/sequences-backend-go/internal/uploader"
)

// ProgressFunc receives human-readable progress notifications while a
// finalize run is in flight.
type ProgressFunc func(message string)

// SequenceService runs the finalize-and-publish pipeline: point processing,
// nadir finalization, multi-destination publishing and durable persistence,
// strictly in that order.
type SequenceService struct {
	store        *store.Store
	coordinator  *nadir.Coordinator
	orchestrator *uploader.Orchestrator
	tokens       *TokenService

	// inFlight is the registry of sequence names being finalized right now.
	// The name is the mutex key: a second finalize for the same name fails
	// with ErrAlreadyExists instead of racing the first.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewSequenceService creates a new sequence service
func NewSequenceService(st *store.Store, coordinator *nadir.Coordinator, orchestrator *uploader.Orchestrator, tokens *TokenService) *SequenceService {
	return &SequenceService{
		store:        st,
		coordinator:  coordinator,
		orchestrator: orchestrator,
		tokens:       tokens,
		inFlight:     make(map[string]struct{}),
	}
}

func (s *SequenceService) acquire(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[name]; busy {
		return fmt.Errorf("%s: %w", name, models.ErrAlreadyExists)
	}
	s.inFlight[name] = struct{}{}
	return nil
}

func (s *SequenceService) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, name)
}

// Finalize runs the whole pipeline for one sequence descriptor and returns
// the durable Result. The descriptor's preview temp files are removed on
// every exit path. Destination failures are recorded on the result rather
// than returned; only validation, codec, filesystem and cancellation
// failures abort the run.
func (s *SequenceService) Finalize(ctx context.Context, desc *models.SequenceDescriptor, progress ProgressFunc) (*models.Result, error) {
	name := store.NormalizeName(desc.Name)
	if name == "" {
		return nil, &models.ValidationError{Reason: "sequence name is required"}
	}
	if err := s.acquire(name); err != nil {
		return nil, err
	}
	defer s.release(name)
	defer store.RemovePreviewFiles(&desc.NadirPreview)

	if len(desc.Points) < 2 {
		return nil, &models.ValidationError{Reason: "more than one image is required to create a sequence"}
	}

	if err := s.store.CreateWorkspace(desc.Name); err != nil {
		return nil, err
	}

	// Stage 1: point processing.
	points := desc.Points
	if len(desc.GpxTrack) > 0 {
		points = processor.CorrelateWithTrack(points, desc.GpxTrack, desc.GpxTimeOffset)
	}
	if desc.Steps.RemoveOutliers {
		points = processor.RemoveOutliers(points, processor.DefaultOutlierSpeedMps)
	}
	spacing := desc.Steps.GpsSpacingSeconds
	if spacing <= 0 {
		spacing = 1
	}
	points = processor.Resample(points, spacing, desc.Steps.CorrectHeading)

	if err := s.importOriginals(ctx, desc, points); err != nil {
		return nil, err
	}

	// Stage 2: nadir finalization and export metadata.
	photos, variant, err := s.coordinator.Apply(desc, points, s.store)
	if err != nil {
		return nil, err
	}

	earliest, latest := processor.TimeBounds(points)
	meta := models.SequenceMetadata{
		Id:              uuid.NewString(),
		Name:            desc.Name,
		Description:     desc.Description,
		Tags:            desc.Tags,
		TransportType:   desc.TransportType,
		TransportMethod: desc.TransportMethod,
		Camera:          desc.Camera,
		Created:         time.Now().UTC(),
		EarliestTime:    earliest,
		LatestTime:      latest,
		DistanceKm:      processor.TotalDistanceKm(points),
	}

	// Stage 3: publish to every selected destination; outcomes land on
	// meta.Destination, never abort the run.
	tokens, err := s.publishTokens()
	if err != nil {
		return nil, err
	}
	// Destinations receive the finished images Apply just wrote, never the
	// untouched originals.
	if err := s.orchestrator.Publish(ctx, desc, points, &meta, tokens, s.store.OutputDir(desc.Name, variant), progress); err != nil {
		return nil, err
	}

	// Stage 4: durable record, the single source of truth for publish state.
	result := &models.Result{Sequence: meta, Photo: photos}
	if err := s.store.Persist(result); err != nil {
		return nil, err
	}
	return result, nil
}

// importOriginals copies the kept points' source images into the sequence's
// originals directory.
func (s *SequenceService) importOriginals(ctx context.Context, desc *models.SequenceDescriptor, points []models.GeoPoint) error {
	for i := range points {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := filepath.Join(desc.SourceDir, points[i].Image)
		dst := filepath.Join(s.store.OriginalsPath(desc.Name), points[i].Image)
		if err := copyFile(src, dst); err != nil {
			return &models.FileSystemError{Op: "copy", Path: src, Err: err}
		}
	}
	return nil
}

func (s *SequenceService) publishTokens() (uploader.Tokens, error) {
	stored, err := s.tokens.GetAll()
	if err != nil {
		return uploader.Tokens{}, err
	}
	tokens := uploader.Tokens{
		Mapillary: stored[IntegrationMapillary],
		MTP:       stored[IntegrationMTP],
	}
	warnIfExpired(IntegrationMapillary, tokens.Mapillary)
	return tokens, nil
}

// Reset deletes a not-yet-finalized sequence's working directory and its
// preview temp files. Idempotent.
func (s *SequenceService) Reset(desc *models.SequenceDescriptor) error {
	return s.store.Reset(desc)
}

// Remove deletes a finalized sequence from the local store.
func (s *SequenceService) Remove(name string) error {
	return s.store.Remove(name)
}

// List garbage-collects interrupted runs, loads every durable result and
// returns summaries reconciled against the session-based platform's current
// state.
func (s *SequenceService) List(ctx context.Context) ([]models.Summary, error) {
	results, err := s.store.ListResults()
	if err != nil {
		return nil, err
	}
	mapillaryToken, err := s.tokens.Get(IntegrationMapillary)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.ReconcileSummaries(ctx, results, mapillaryToken), nil
}

// GeneratePreview produces the 16 candidate nadir previews for one logo and
// target image.
func (s *SequenceService) GeneratePreview(logoPath, imagePath string, width, height int) (*models.NadirPreview, error) {
	return s.coordinator.GeneratePreviews(logoPath, imagePath, width, height)
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
		return err
	}
	return out.Close()
}
