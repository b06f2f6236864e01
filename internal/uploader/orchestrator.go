// Package uploader orchestrates publishing one finalized sequence to the
// external platforms. Destinations are independent: a failure on one is
// recorded on the sequence metadata and never blocks the other destination
// or local persistence.
package uploader

import (
	"context"
	"log"

	"github.com/geoseq/sequences-backend-go/internal/models"
	"github.com/geoseq/sequences-backend-go/internal/platform/mapillary"
	"github.com/geoseq/sequences-backend-go/internal/platform/mtpweb"
)

// Tokens is the credential context for one publish run: read-only,
// resolved by the token service before the run starts.
type Tokens struct {
	Mapillary string
	MTP       string
}

// Orchestrator drives the per-destination publish state machine.
type Orchestrator struct {
	mapillary *mapillary.Client
	mtp       *mtpweb.Client
}

// New wires the orchestrator with both platform clients.
func New(mapillaryClient *mapillary.Client, mtpClient *mtpweb.Client) *Orchestrator {
	return &Orchestrator{mapillary: mapillaryClient, mtp: mtpClient}
}

// Publish attempts every selected destination in turn and records each
// outcome on meta.Destination: "" when the destination never started,
// the remote id on success, "Error: <reason>" when an attempt failed
// mid-flight. Publish itself only errors on context cancellation.
func (o *Orchestrator) Publish(ctx context.Context, seq *models.SequenceDescriptor, points []models.GeoPoint, meta *models.SequenceMetadata, tokens Tokens, imagesDir string, progress func(string)) error {
	if seq.Destinations.Mapillary && tokens.Mapillary != "" {
		o.publishMapillary(ctx, seq, points, meta, tokens.Mapillary, imagesDir, progress)
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if seq.Destinations.MTP && tokens.MTP != "" {
		o.publishMTP(ctx, meta, tokens)
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}

// publishMapillary runs the session-based destination: open session, upload
// every image in order, close the session. A session-open failure leaves
// the destination unpublished (nothing was attempted); a failure after the
// session opened is recorded as an error marker.
func (o *Orchestrator) publishMapillary(ctx context.Context, seq *models.SequenceDescriptor, points []models.GeoPoint, meta *models.SequenceMetadata, token, imagesDir string, progress func(string)) {
	session, err := o.mapillary.OpenSession(ctx, token)
	if err != nil {
		log.Printf("mapillary session for %q not opened: %v", meta.Name, err)
		meta.Destination.Mapillary = ""
		return
	}

	if err := o.mapillary.UploadAll(ctx, points, imagesDir, seq.Name, session, progress); err != nil {
		log.Printf("mapillary upload for %q failed: %v", meta.Name, err)
		meta.Destination.Mapillary = "Error: " + err.Error()
		return
	}

	if err := o.mapillary.PublishSession(ctx, token, session.Key); err != nil {
		log.Printf("mapillary session close for %q failed: %v", meta.Name, err)
		meta.Destination.Mapillary = "Error: " + err.Error()
		return
	}

	meta.Destination.Mapillary = session.Key
}

// publishMTP posts the sequence and, when the session-based destination
// also published, cross-references the two remote records. A link failure
// is logged but the successful post stands.
func (o *Orchestrator) publishMTP(ctx context.Context, meta *models.SequenceMetadata, tokens Tokens) {
	uniqueID, err := o.mtp.PostSequence(ctx, meta, tokens.MTP)
	if err != nil {
		log.Printf("mtp post for %q failed: %v", meta.Name, err)
		meta.Destination.MTP = "Error: " + err.Error()
		return
	}
	meta.Destination.MTP = uniqueID

	if models.Published(meta.Destination.Mapillary) && tokens.Mapillary != "" {
		if err := o.mtp.LinkSequences(ctx, uniqueID, tokens.MTP, meta.Destination.Mapillary, tokens.Mapillary); err != nil {
			log.Printf("mtp link for %q failed (post kept): %v", meta.Name, err)
		}
	}
}

// ReconcileSummaries derives listing summaries from the durable results and
// re-queries the session-based platform for each one that published there,
// rewriting the destination field to the current remote state: a session
// error becomes "Error: <reason>", a finished session with no remote
// sequence yet becomes the empty (unpublished) marker. A re-query failure
// leaves that summary untouched; listing never fails because one sequence
// could not be checked.
func (o *Orchestrator) ReconcileSummaries(ctx context.Context, results []models.Result, mapillaryToken string) []models.Summary {
	summaries := make([]models.Summary, 0, len(results))
	for i := range results {
		summaries = append(summaries, models.Summarize(&results[i]))
	}
	if mapillaryToken == "" {
		return summaries
	}

	for i := range summaries {
		dest := summaries[i].Destination.Mapillary
		if !models.Published(dest) {
			continue
		}

		reason, err := o.mapillary.SessionErrorReason(ctx, mapillaryToken, dest)
		if err != nil {
			log.Printf("mapillary status check for %q skipped: %v", summaries[i].Name, err)
			continue
		}
		if reason != "" {
			summaries[i].Destination.Mapillary = "Error: " + reason
			continue
		}

		key, err := o.mapillary.FindSequence(ctx, mapillaryToken,
			results[i].Sequence.EarliestTime, results[i].Sequence.LatestTime)
		if err != nil {
			log.Printf("mapillary sequence lookup for %q skipped: %v", summaries[i].Name, err)
			continue
		}
		if key == "" {
			summaries[i].Destination.Mapillary = ""
		}
	}

	return summaries
}
