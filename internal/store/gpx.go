package store

import (
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"github.com/geoseq/sequences-backend-go/internal/models"
)

// gpx XML layout, GPX 1.1. Only what the pipeline writes and reads: one
// track, one segment, trackpoints with lat/lon/ele/time.
type gpxDoc struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Xmlns   string   `xml:"xmlns,attr,omitempty"`
	Tracks  []gpxTrk `xml:"trk"`
}

type gpxTrk struct {
	Name     string   `xml:"name,omitempty"`
	Segments []gpxSeg `xml:"trkseg"`
}

type gpxSeg struct {
	Points []gpxTrkPt `xml:"trkpt"`
}

type gpxTrkPt struct {
	Lat  float64  `xml:"lat,attr"`
	Lon  float64  `xml:"lon,attr"`
	Ele  *float64 `xml:"ele,omitempty"`
	Time string   `xml:"time,omitempty"`
}

// BuildGPX renders a sequence's exported photos as a single-segment GPX
// track, one trackpoint per photo in capture order, using the modified
// (corrected) geotags.
func BuildGPX(result *models.Result) ([]byte, error) {
	photos := make([]models.ExportPhoto, 0, len(result.Photo))
	for _, photo := range result.Photo {
		photos = append(photos, photo)
	}
	sort.Slice(photos, func(i, j int) bool {
		return photos[i].Modified.GPSDateTime < photos[j].Modified.GPSDateTime
	})

	points := make([]gpxTrkPt, 0, len(photos))
	for _, photo := range photos {
		// Altitude 0 marks a photo that never carried one; those points
		// get no ele element.
		var ele *float64
		if photo.Modified.Altitude != 0 {
			altitude := photo.Modified.Altitude
			ele = &altitude
		}
		points = append(points, gpxTrkPt{
			Lat:  photo.Modified.Latitude,
			Lon:  photo.Modified.Longitude,
			Ele:  ele,
			Time: photo.Modified.GPSDateTime,
		})
	}

	doc := gpxDoc{
		Version: "1.1",
		Creator: "sequences-backend",
		Xmlns:   "http://www.topografix.com/GPX/1/1",
		Tracks: []gpxTrk{{
			Name:     result.Sequence.Name,
			Segments: []gpxSeg{{Points: points}},
		}},
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// ParseGPX reads an uploaded GPX document into track points, flattening all
// tracks and segments in document order.
func ParseGPX(data []byte) ([]models.GpxTrackPoint, error) {
	var doc gpxDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}

	var points []models.GpxTrackPoint
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, pt := range seg.Points {
				point := models.GpxTrackPoint{
					Latitude:  pt.Lat,
					Longitude: pt.Lon,
					Elevation: pt.Ele,
				}
				if pt.Time != "" {
					ts, err := time.Parse(time.RFC3339, pt.Time)
					if err != nil {
						return nil, fmt.Errorf("parse gpx time %q: %w", pt.Time, err)
					}
					point.Timestamp = ts
				}
				points = append(points, point)
			}
		}
	}
	return points, nil
}
