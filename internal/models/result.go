package models

import "time"

// Destination records the publish outcome per external platform. An empty
// string means not published, a string starting with "Error:" records a
// failed attempt, anything else is the remote id.
type Destination struct {
	Mapillary string `json:"mapillary"`
	MTP       string `json:"mtp"`
}

// Published reports whether the field holds a usable remote id.
func Published(field string) bool {
	return field != "" && !IsDestinationError(field)
}

// IsDestinationError reports whether a destination field records a failure.
func IsDestinationError(field string) bool {
	return len(field) >= 6 && field[:6] == "Error:"
}

// SequenceMetadata is the durable header of a finalized sequence. The JSON
// field names are the on-disk log format and must stay stable.
type SequenceMetadata struct {
	Id              string      `json:"id"`
	Name            string      `json:"uploader_sequence_name"`
	Description     string      `json:"uploader_sequence_description"`
	Tags            []string    `json:"uploader_tags"`
	TransportType   string      `json:"uploader_transport_type"`
	TransportMethod string      `json:"uploader_transport_method"`
	Camera          string      `json:"uploader_camera"`
	Created         time.Time   `json:"created"`
	EarliestTime    time.Time   `json:"earliest_time"`
	LatestTime      time.Time   `json:"latest_time"`
	DistanceKm      float64     `json:"distance_km"`
	Destination     Destination `json:"destination"`
}

// PhotoGeoFields is one set of geotags for a photo, either as read from the
// source image or as corrected by the pipeline.
type PhotoGeoFields struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Altitude    float64 `json:"altitude"`
	Heading     float64 `json:"heading"`
	Pitch       float64 `json:"pitch"`
	GPSDateTime string  `json:"GPSDateTime"`
	Copyright   string  `json:"copyright,omitempty"`
}

// ExportPhoto keeps both the original and the corrected geotags of one
// exported image so every correction stays auditable.
type ExportPhoto struct {
	Original PhotoGeoFields `json:"original"`
	Modified PhotoGeoFields `json:"modified"`
}

// Result is the durable record of one finalized sequence: the metadata plus
// one ExportPhoto per source filename. Never mutated after persisting;
// corrections require a full re-finalization.
type Result struct {
	Sequence SequenceMetadata       `json:"sequence"`
	Photo    map[string]ExportPhoto `json:"photo"`
}

// Summary is the listing projection of a Result. It is always recomputed
// from the Result, never persisted on its own.
type Summary struct {
	Id          string      `json:"id"`
	Tags        []string    `json:"tags"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Type        string      `json:"type"`
	Method      string      `json:"method"`
	Points      int         `json:"points"`
	TotalKm     float64     `json:"total_km"`
	Created     time.Time   `json:"created"`
	Captured    time.Time   `json:"captured"`
	Camera      string      `json:"camera"`
	Destination Destination `json:"destination"`
}

// Summarize derives the listing projection from a durable Result.
func Summarize(r *Result) Summary {
	return Summary{
		Id:          r.Sequence.Id,
		Tags:        r.Sequence.Tags,
		Name:        r.Sequence.Name,
		Description: r.Sequence.Description,
		Type:        r.Sequence.TransportType,
		Method:      r.Sequence.TransportMethod,
		Points:      len(r.Photo),
		TotalKm:     r.Sequence.DistanceKm,
		Created:     r.Sequence.Created,
		Captured:    r.Sequence.EarliestTime,
		Camera:      r.Sequence.Camera,
		Destination: r.Sequence.Destination,
	}
}
