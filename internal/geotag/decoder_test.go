package geotag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitiscan/vitiscan-web/internal/geotag"
	"github.com/vitiscan/vitiscan-web/pkg/testutil"
)

func TestDecode_FallbackWithoutCoordinates(t *testing.T) {
	tests := []struct {
		name  string
		image []byte
	}{
		{"nil input", nil},
		{"not an image", []byte("this is not an image")},
		{"jpeg without exif", testutil.PlainJPEG()},
		{"exif without any tag", testutil.JPEGWithExif(testutil.Photo{})},
		{"exif with date only", testutil.JPEGWithExif(testutil.Photo{DateOriginal: "2024:06:15 10:30:00"})},
		{"latitude without longitude", testutil.JPEGWithExif(testutil.Photo{LatRef: "N", Lat: testutil.Whole(45, 0, 0)})},
		{"truncated exif", testutil.JPEGWithExif(testutil.Photo{LatRef: "N", Lat: testutil.Whole(45, 0, 0), LonRef: "E", Lon: testutil.Whole(4, 0, 0)})[:40]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tag geotag.GeoTag
			require.NotPanics(t, func() { tag = geotag.Decode(tt.image) })

			assert.False(t, tag.HasCoordinates)
			assert.Nil(t, tag.Latitude)
			assert.Nil(t, tag.Longitude)
		})
	}
}

func TestDecode_Paris(t *testing.T) {
	img := testutil.JPEGWithExif(testutil.Photo{
		LatRef: "N", Lat: testutil.Whole(48, 51, 29),
		LonRef: "E", Lon: testutil.Whole(2, 21, 5),
		DateOriginal: "2024:07:20 08:15:00",
	})

	tag := geotag.Decode(img)

	require.True(t, tag.HasCoordinates)
	assert.InDelta(t, 48.8581, *tag.Latitude, 0.001)
	assert.InDelta(t, 2.351388, *tag.Longitude, 1e-6)
	require.NotNil(t, tag.CapturedAt)
	assert.Equal(t, "2024-07-20", *tag.CapturedAt)
}

func TestDecode_SouthernAndWesternHemispheres(t *testing.T) {
	img := testutil.JPEGWithExif(testutil.Photo{
		LatRef: "S", Lat: testutil.Whole(33, 52, 4),
		LonRef: "W", Lon: testutil.Whole(70, 40, 0),
	})

	tag := geotag.Decode(img)

	require.True(t, tag.HasCoordinates)
	assert.InDelta(t, -33.867777, *tag.Latitude, 1e-6)
	assert.InDelta(t, -70.666666, *tag.Longitude, 1e-6)
	assert.Nil(t, tag.CapturedAt)
}

func TestDecode_EquatorAndPrimeMeridian(t *testing.T) {
	img := testutil.JPEGWithExif(testutil.Photo{
		LatRef: "S", Lat: testutil.Whole(0, 0, 0),
		LonRef: "W", Lon: testutil.Whole(0, 0, 0),
	})

	tag := geotag.Decode(img)

	require.True(t, tag.HasCoordinates)
	require.NotNil(t, tag.Latitude)
	require.NotNil(t, tag.Longitude)
	assert.Equal(t, 0.0, *tag.Latitude)
	assert.Equal(t, 0.0, *tag.Longitude)
	assert.Equal(t, "0.000000,0.000000", tag.Location())
}

func TestDecode_MaxMinutesAndSeconds(t *testing.T) {
	img := testutil.JPEGWithExif(testutil.Photo{
		LatRef: "N", Lat: testutil.Whole(1, 59, 59),
		LonRef: "E", Lon: testutil.Whole(20, 59, 59),
	})

	tag := geotag.Decode(img)

	require.True(t, tag.HasCoordinates)
	assert.InDelta(t, 1.9997, *tag.Latitude, 0.0001)
	assert.Less(t, *tag.Latitude, 2.0)
	assert.Less(t, *tag.Longitude, 21.0)
	assert.Greater(t, *tag.Longitude, 20.9)
}

func TestDecode_FractionalSeconds(t *testing.T) {
	img := testutil.JPEGWithExif(testutil.Photo{
		LatRef: "N", Lat: &testutil.DMS{{44, 1}, {50, 1}, {1234, 100}},
		LonRef: "W", Lon: &testutil.DMS{{0, 1}, {34, 1}, {5, 2}},
	})

	tag := geotag.Decode(img)

	require.True(t, tag.HasCoordinates)
	assert.InDelta(t, 44+50.0/60+12.34/3600, *tag.Latitude, 1e-9)
	assert.InDelta(t, -(34.0/60 + 2.5/3600), *tag.Longitude, 1e-9)
}

func TestDecode_ZeroDenominatorDiscardsCoordinates(t *testing.T) {
	img := testutil.JPEGWithExif(testutil.Photo{
		LatRef: "N", Lat: &testutil.DMS{{45, 0}, {0, 1}, {0, 1}},
		LonRef: "E", Lon: testutil.Whole(4, 0, 0),
		DateOriginal: "2024:06:15 10:30:00",
	})

	tag := geotag.Decode(img)

	assert.False(t, tag.HasCoordinates)
	require.NotNil(t, tag.CapturedAt, "a broken GPS block must not drop the date")
	assert.Equal(t, "2024-06-15", *tag.CapturedAt)
}

func TestDecode_OutOfRangeLatitude(t *testing.T) {
	img := testutil.JPEGWithExif(testutil.Photo{
		LatRef: "N", Lat: testutil.Whole(91, 0, 0),
		LonRef: "E", Lon: testutil.Whole(4, 0, 0),
	})

	assert.False(t, geotag.Decode(img).HasCoordinates)
}

func TestDecode_MissingReferenceIsPositive(t *testing.T) {
	img := testutil.JPEGWithExif(testutil.Photo{Lat: testutil.Whole(45, 30, 0), Lon: testutil.Whole(4, 15, 0)})

	tag := geotag.Decode(img)

	require.True(t, tag.HasCoordinates)
	assert.InDelta(t, 45.5, *tag.Latitude, 1e-9)
	assert.InDelta(t, 4.25, *tag.Longitude, 1e-9)
}

func TestDecode_Dates(t *testing.T) {
	tests := []struct {
		name string
		p    testutil.Photo
		want *string
	}{
		{"date time original", testutil.Photo{DateOriginal: "2024:06:15 10:30:00"}, testutil.PtrString("2024-06-15")},
		{"date only", testutil.Photo{DateOriginal: "2024:06:15"}, testutil.PtrString("2024-06-15")},
		{"falls back to DateTime", testutil.Photo{DateTime: "2023:09:01 07:00:00"}, testutil.PtrString("2023-09-01")},
		{"original wins over DateTime", testutil.Photo{DateOriginal: "2024:06:15 10:30:00", DateTime: "2023:09:01 07:00:00"}, testutil.PtrString("2024-06-15")},
		{"placeholder original falls back to DateTime", testutil.Photo{DateOriginal: "0000:00:00 00:00:00", DateTime: "2023:09:01 07:00:00"}, testutil.PtrString("2023-09-01")},
		{"malformed original falls back to DateTime", testutil.Photo{DateOriginal: "not-a-date", DateTime: "2023:09:01 07:00:00"}, testutil.PtrString("2023-09-01")},
		{"malformed", testutil.Photo{DateOriginal: "not-a-date"}, nil},
		{"slashes", testutil.Photo{DateOriginal: "2024/06/15"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag := geotag.Decode(testutil.JPEGWithExif(tt.p))
			assert.Equal(t, tt.want, tag.CapturedAt)
			assert.False(t, tag.HasCoordinates)
		})
	}
}

func TestDMSToDecimal(t *testing.T) {
	tests := []struct {
		name                      string
		degrees, minutes, seconds float64
		ref                       string
		want                      float64
	}{
		{"paris latitude", 48, 51, 29, "N", 48.858055},
		{"whole degrees", 45, 0, 0, "N", 45},
		{"south", 10, 30, 0, "S", -10.5},
		{"west lowercase", 2, 15, 0, "w", -2.25},
		{"east", 2, 15, 0, "E", 2.25},
		{"max minutes and seconds", 1, 59, 59, "N", 1.999722},
		{"equator south", 0, 0, 0, "S", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := geotag.DMSToDecimal(tt.degrees, tt.minutes, tt.seconds, tt.ref)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestParseCaptureDate(t *testing.T) {
	tests := []struct {
		raw  string
		want *string
	}{
		{"2024:06:15", testutil.PtrString("2024-06-15")},
		{"2024:06:15 10:30:00", testutil.PtrString("2024-06-15")},
		{"2024:06:15 10:30:00\x00", testutil.PtrString("2024-06-15")},
		{"2024/06/15", nil},
		{"2024:13:15", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, geotag.ParseCaptureDate(tt.raw))
		})
	}
}
