package models

// AttachType distinguishes how the source images entered the sequence.
type AttachType string

const (
	AttachPhotos AttachType = "photo"
	AttachVideo  AttachType = "video"
)

// StepSettings holds the per-step choices the user made while building the
// sequence.
type StepSettings struct {
	GpsSpacingSeconds float64 `json:"gpsSpacingSeconds"`
	RemoveOutliers    bool    `json:"removeOutliers"`
	CorrectHeading    bool    `json:"correctHeading"`
	AddCopyright      bool    `json:"addCopyright"`
	AddNadir          bool    `json:"addNadir"`
}

// DestinationSettings selects which external platforms the finished sequence
// is published to.
type DestinationSettings struct {
	Mapillary bool `json:"mapillary"`
	MTP       bool `json:"mtp"`
}

// NadirPreview carries the artifacts of the nadir preview step: the
// temporary resized logo and one composited preview file per candidate
// percentage. All of these are temp files and are removed on reset or once
// the sequence is finalized.
type NadirPreview struct {
	LogoFile   string            `json:"logofile"`
	Percentage float64           `json:"percentage"`
	Items      map[string]string `json:"items"`
}

// SequenceDescriptor is the in-progress sequence under construction. It is
// owned by exactly one finalize run; the name doubles as the storage key.
type SequenceDescriptor struct {
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	Tags            []string            `json:"tags"`
	TransportType   string              `json:"transportType"`
	TransportMethod string              `json:"transportMethod"`
	Camera          string              `json:"camera"`

	// Copyright is embedded into every exported photo's geotags when the
	// AddCopyright step is selected.
	Copyright string `json:"copyright,omitempty"`

	Attach AttachType `json:"attachType"`
	Steps           StepSettings        `json:"steps"`
	Destinations    DestinationSettings `json:"destinations"`
	NadirPreview    NadirPreview        `json:"nadirPreview"`

	// SourceDir is the directory the raw input images were ingested into;
	// finalize copies the kept points' files from here into the sequence's
	// originals directory.
	SourceDir string `json:"sourceDir"`

	Points []GeoPoint `json:"points"`

	// Optional external track for position correction, plus the scalar
	// offset (seconds) applied to every track timestamp before matching.
	GpxTrack      []GpxTrackPoint `json:"gpxTrack,omitempty"`
	GpxTimeOffset float64         `json:"gpxTimeOffset,omitempty"`
}
