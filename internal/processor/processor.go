// Package processor implements the geodesic point processor: pure functions
// that resample, correct and annotate a photo point track before the
// sequence is finalized. Nothing in this package performs I/O or fails;
// missing numeric fields degrade to 0 or stay nil.
package processor

import (
	"time"

	"github.com/geoseq/sequences-backend-go/internal/models"
	"github.com/geoseq/sequences-backend-go/internal/spatial"
)

// Distance returns the great-circle distance in meters between two points,
// or 0 when either point is absent or lacks a fix.
func Distance(a, b *models.GeoPoint) float64 {
	if !a.HasFix() || !b.HasFix() {
		return 0
	}
	return spatial.HaversineDistance(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude)
}

// Bearing returns the initial bearing in degrees from a to b, or 0 when
// either point lacks a fix.
func Bearing(a, b *models.GeoPoint) float64 {
	if !a.HasFix() || !b.HasFix() {
		return 0
	}
	return spatial.Bearing(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude)
}

// Pitch returns the slope from a to b over the given ground distance, or nil
// when either altitude is unknown.
func Pitch(a, b *models.GeoPoint, distance float64) *float64 {
	if a.Altitude == nil || b.Altitude == nil {
		return nil
	}
	p := spatial.Pitch(*a.Altitude, *b.Altitude, distance)
	return &p
}

// DefaultOutlierSpeedMps is the speed ceiling used by outlier removal,
// in meters per second. 40 m/s (144 km/h) clears every supported land
// transport while catching multi-kilometer position jumps.
const DefaultOutlierSpeedMps = 40.0

// RemoveOutliers drops points whose implied speed from the previously kept
// positioned point exceeds maxSpeedMps. Points without a fix pass through
// untouched, the first positioned point is always kept, and a non-positive
// time delta never counts as an outlier.
func RemoveOutliers(points []models.GeoPoint, maxSpeedMps float64) []models.GeoPoint {
	if maxSpeedMps <= 0 || len(points) == 0 {
		return points
	}

	kept := make([]models.GeoPoint, 0, len(points))
	lastFix := -1

	for i := range points {
		point := points[i]
		if !point.HasFix() {
			kept = append(kept, point)
			continue
		}

		if lastFix >= 0 {
			prev := &kept[lastFix]
			dt := point.Timestamp.Sub(prev.Timestamp).Seconds()
			if dt > 0 && Distance(prev, &point)/dt > maxSpeedMps {
				continue
			}
		}

		kept = append(kept, point)
		lastFix = len(kept) - 1
	}
	return kept
}

// Resample walks the point sequence keeping a point only if the next
// candidate's timestamp is at least minIntervalSeconds ahead of the last
// kept point. The scan is greedy and forward-only: a dropped point is never
// re-examined. For each kept point except the last, azimuth (when unset or
// forceRecompute), distance and pitch to the next kept point are computed.
// The final point gets distance 0 and inherits azimuth/pitch from its
// predecessor when its own are unset.
//
// The output preserves input order and is a subsequence of the input. A
// single-point input comes back as exactly that point with distance 0.
func Resample(points []models.GeoPoint, minIntervalSeconds float64, forceRecompute bool) []models.GeoPoint {
	if len(points) == 0 {
		return nil
	}

	kept := make([]models.GeoPoint, 0, len(points))
	cur := 0

	for next := 1; ; next++ {
		if next >= len(points) {
			last := points[cur]
			zero := 0.0
			last.Distance = &zero

			if len(kept) > 0 {
				prev := &kept[len(kept)-1]
				if last.Azimuth == nil {
					last.Azimuth = prev.Azimuth
				}
				if last.Pitch == nil {
					last.Pitch = prev.Pitch
				}
			}

			kept = append(kept, last)
			break
		}

		candidate := &points[next]
		point := points[cur]

		if candidate.Timestamp.Sub(point.Timestamp).Seconds() >= minIntervalSeconds {
			if point.Azimuth == nil || forceRecompute {
				azimuth := Bearing(&point, candidate)
				point.Azimuth = &azimuth
			}

			distance := Distance(&point, candidate)
			point.Distance = &distance

			if point.Pitch == nil || forceRecompute {
				point.Pitch = Pitch(&point, candidate, distance)
			}

			kept = append(kept, point)
			cur = next
		}
	}

	return kept
}

// CorrelateWithTrack corrects photo positions against an external GPX track.
// Every track timestamp is shifted by timeOffsetSeconds first; a photo point
// matches only when a shifted track timestamp lands on the same whole
// second. On a match lat/lon are overwritten unconditionally and altitude
// only when the track point supplies an elevation. Unmatched points pass
// through unchanged.
//
// This is an exact-timestamp join, not nearest-neighbor, which matches the
// GPX recorder cadence this pipeline expects and may leave points
// uncorrected when the clocks drift.
func CorrelateWithTrack(points []models.GeoPoint, track []models.GpxTrackPoint, timeOffsetSeconds float64) []models.GeoPoint {
	out := make([]models.GeoPoint, len(points))
	copy(out, points)

	if len(track) == 0 {
		return out
	}

	offset := int64(timeOffsetSeconds)
	byTime := make(map[int64]*models.GpxTrackPoint, len(track))
	for i := range track {
		shifted := track[i].Timestamp.Unix() + offset
		if _, ok := byTime[shifted]; !ok {
			byTime[shifted] = &track[i]
		}
	}

	for i := range out {
		match, ok := byTime[out[i].Timestamp.Unix()]
		if !ok {
			continue
		}

		lat := match.Latitude
		lon := match.Longitude
		out[i].Latitude = &lat
		out[i].Longitude = &lon

		if match.Elevation != nil {
			ele := *match.Elevation
			out[i].Altitude = &ele
		}
	}

	return out
}

// TotalDistanceKm sums the per-point distances of a resampled sequence in
// kilometers.
func TotalDistanceKm(points []models.GeoPoint) float64 {
	var meters float64
	for i := range points {
		if points[i].Distance != nil {
			meters += *points[i].Distance
		}
	}
	return meters / 1000
}

// TimeBounds returns the earliest and latest capture timestamps of the
// sequence. Zero times when the sequence is empty.
func TimeBounds(points []models.GeoPoint) (earliest, latest time.Time) {
	if len(points) == 0 {
		return
	}
	earliest, latest = points[0].Timestamp, points[0].Timestamp
	for i := range points[1:] {
		ts := points[i+1].Timestamp
		if ts.Before(earliest) {
			earliest = ts
		}
		if ts.After(latest) {
			latest = ts
		}
	}
	return earliest, latest
}
