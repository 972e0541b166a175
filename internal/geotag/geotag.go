// Package geotag extracts the capture location and date embedded in a
// photo's EXIF metadata.
package geotag

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoTag is the location and capture date decoded from one image.
// The zero value is the fallback for images without usable metadata.
type GeoTag struct {
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	CapturedAt     *string  `json:"capturedAt"` // YYYY-MM-DD
	HasCoordinates bool     `json:"hasCoordinates"`
}

// Point returns the coordinates as an orb point (longitude, latitude).
func (g GeoTag) Point() (orb.Point, bool) {
	if !g.HasCoordinates || g.Latitude == nil || g.Longitude == nil {
		return orb.Point{}, false
	}
	return orb.Point{*g.Longitude, *g.Latitude}, true
}

// Feature returns the geotag as a GeoJSON point feature for the map layer,
// or nil when the image carried no coordinates.
func (g GeoTag) Feature() *geojson.Feature {
	p, ok := g.Point()
	if !ok {
		return nil
	}
	f := geojson.NewFeature(p)
	if g.CapturedAt != nil {
		f.Properties["capturedAt"] = *g.CapturedAt
	}
	return f
}

// Location formats the coordinates as "lat,lon", the form expected by the
// Treatment Plan API. Empty when there are no coordinates.
func (g GeoTag) Location() string {
	p, ok := g.Point()
	if !ok {
		return ""
	}
	return formatCoord(p.Lat()) + "," + formatCoord(p.Lon())
}
