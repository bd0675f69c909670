package trip

import (
	"context"
	"encoding/xml"
	"io"
	"time"

	"backend-triptracker/internal/shared/geo"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const gpxCreator = "backend-triptracker"

type gpxDoc struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	XMLNS   string   `xml:"xmlns,attr"`
	Track   gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Name    string     `xml:"name"`
	Segment gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Time string  `xml:"time"`
}

// ExportGPX writes the trip as a single-segment GPX 1.1 track.
func (s *Service) ExportGPX(ctx context.Context, tripID string, w io.Writer) error {
	trip, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return err
	}
	waypoints, err := s.Waypoints(ctx, tripID)
	if err != nil {
		return err
	}

	doc := gpxDoc{
		Version: "1.1",
		Creator: gpxCreator,
		XMLNS:   "http://www.topografix.com/GPX/1/1",
		Track:   gpxTrack{Name: "Trip " + trip.StartedAt.UTC().Format(time.RFC3339)},
	}
	for _, wp := range waypoints {
		doc.Track.Segment.Points = append(doc.Track.Segment.Points, gpxPoint{
			Lat:  wp.Lat,
			Lon:  wp.Lng,
			Time: wp.RecordedAt.UTC().Format(time.RFC3339),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Flush()
}

// ExportGeoJSON returns a feature collection holding the trip path as a LineString.
func (s *Service) ExportGeoJSON(ctx context.Context, tripID string) ([]byte, error) {
	trip, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	waypoints, err := s.Waypoints(ctx, tripID)
	if err != nil {
		return nil, err
	}

	line := make(orb.LineString, 0, len(waypoints))
	times := make([]string, 0, len(waypoints))
	speeds := make([]float64, 0, len(waypoints))
	for _, wp := range waypoints {
		line = append(line, geo.Point(wp.Lat, wp.Lng))
		times = append(times, wp.RecordedAt.UTC().Format(time.RFC3339))
		speeds = append(speeds, wp.SpeedMps)
	}

	feature := geojson.NewFeature(line)
	feature.Properties["trip_id"] = trip.ID
	feature.Properties["started_at"] = trip.StartedAt.UTC().Format(time.RFC3339)
	feature.Properties["duration_ms"] = trip.DurationMs
	feature.Properties["distance_m"] = trip.DistanceM
	feature.Properties["times"] = times
	feature.Properties["speeds_mps"] = speeds

	fc := geojson.NewFeatureCollection()
	fc.Append(feature)
	return fc.MarshalJSON()
}
