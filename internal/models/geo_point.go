package models

import "time"

// GeoPoint represents one photo (or extracted video frame) with its
// positioning metadata. Latitude/Longitude/Altitude are pointers because a
// frame may arrive without a fix; they are only ever overwritten by an
// explicit GPX correction or by the resampling backfill.
type GeoPoint struct {
	Image     string    `json:"image"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Timestamp time.Time `json:"timestamp"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"`

	// Azimuth is the heading in degrees (0-360), filled in during resampling
	// when the source image did not carry one.
	Azimuth *float64 `json:"azimuth,omitempty"`
	Pitch   *float64 `json:"pitch,omitempty"`

	// Distance is the great-circle distance in meters to the next kept point.
	Distance *float64 `json:"distance,omitempty"`

	// Derived marks points whose position was computed rather than read from
	// the source metadata.
	Derived bool `json:"derived,omitempty"`
}

// HasFix reports whether the point carries a usable lat/lon pair.
func (p *GeoPoint) HasFix() bool {
	return p != nil && p.Latitude != nil && p.Longitude != nil
}

// GpxTrackPoint is one sample from an externally recorded GPX track.
// Read-only once loaded; correlation shifts timestamps by a scalar offset
// without mutating the loaded track.
type GpxTrackPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Elevation *float64  `json:"elevation,omitempty"`
}
