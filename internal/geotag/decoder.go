package geotag

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

const (
	exifDateTimeLayout = "2006:01:02 15:04:05"
	exifDateLayout     = "2006:01:02"
	isoDateLayout      = "2006-01-02"
)

// Decode reads the GPS position and capture date from the EXIF block of an
// image. It never fails: missing, unreadable or malformed metadata yields the
// zero GeoTag, and a malformed date only clears CapturedAt.
func Decode(image []byte) (tag GeoTag) {
	defer func() {
		if recover() != nil {
			tag = GeoTag{}
		}
	}()

	x, err := exif.Decode(bytes.NewReader(image))
	if err != nil || x == nil {
		return GeoTag{}
	}

	tag.CapturedAt = captureDate(x)

	lat, okLat := readCoordinate(x, exif.GPSLatitude, exif.GPSLatitudeRef)
	lon, okLon := readCoordinate(x, exif.GPSLongitude, exif.GPSLongitudeRef)
	if okLat && okLon && validLatitude(lat) && validLongitude(lon) {
		tag.Latitude = &lat
		tag.Longitude = &lon
		tag.HasCoordinates = true
	}

	return tag
}

// DMSToDecimal converts degrees/minutes/seconds to signed decimal degrees.
// S and W references are negative. No rounding is applied.
func DMSToDecimal(degrees, minutes, seconds float64, ref string) float64 {
	decimal := degrees + minutes/60 + seconds/3600
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		decimal = -decimal
	}
	if decimal == 0 {
		// Avoid -0 for the equator and prime meridian.
		return 0
	}
	return decimal
}

// ParseCaptureDate converts an EXIF date ("YYYY:MM:DD" optionally followed by
// " HH:MM:SS") to "YYYY-MM-DD". It returns nil for anything else.
func ParseCaptureDate(raw string) *string {
	raw = strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	for _, layout := range []string{exifDateTimeLayout, exifDateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			s := t.Format(isoDateLayout)
			return &s
		}
	}
	return nil
}

func captureDate(x *exif.Exif) *string {
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		t, err := x.Get(field)
		if err != nil {
			continue
		}
		raw, err := t.StringVal()
		if err != nil {
			continue
		}
		// Cameras write 0000:00:00 placeholders, so try the next field.
		if date := ParseCaptureDate(raw); date != nil {
			return date
		}
	}
	return nil
}

func readCoordinate(x *exif.Exif, field, refField exif.FieldName) (float64, bool) {
	t, err := x.Get(field)
	if err != nil || t.Count < 3 {
		return 0, false
	}

	var dms [3]float64
	for i := range dms {
		num, den, err := t.Rat2(i)
		if err != nil || den == 0 || num < 0 || den < 0 {
			return 0, false
		}
		dms[i] = float64(num) / float64(den)
	}

	var ref string
	if r, err := x.Get(refField); err == nil {
		ref, _ = r.StringVal()
	}

	return DMSToDecimal(dms[0], dms[1], dms[2], strings.TrimRight(ref, "\x00")), true
}

func validLatitude(v float64) bool {
	return !math.IsNaN(v) && v >= -90 && v <= 90
}

func validLongitude(v float64) bool {
	return !math.IsNaN(v) && v >= -180 && v <= 180
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
