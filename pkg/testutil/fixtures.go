package testutil

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// Synthetic photo fixtures. Real camera files are large and carry personal
// metadata, so tests build the smallest JPEG goexif will accept.

const (
	tiffASCII    = 2
	tiffLong     = 4
	tiffRational = 5

	tagExifIFD          = 0x8769
	tagGPSIFD           = 0x8825
	tagDateTime         = 0x0132
	tagDateTimeOriginal = 0x9003
	tagGPSLatitudeRef   = 0x0001
	tagGPSLatitude      = 0x0002
	tagGPSLongitudeRef  = 0x0003
	tagGPSLongitude     = 0x0004
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// DMS is a degrees, minutes, seconds triple of EXIF rationals {numerator, denominator}.
type DMS [3][2]uint32

// Photo describes the metadata of a synthetic JPEG. Empty fields are omitted.
type Photo struct {
	LatRef, LonRef string
	Lat, Lon       *DMS
	DateOriginal   string
	DateTime       string
}

// Whole returns a DMS of whole degrees, minutes and seconds
func Whole(d, m, s uint32) *DMS {
	return &DMS{{d, 1}, {m, 1}, {s, 1}}
}

func asciiEntry(tag uint16, s string) ifdEntry {
	b := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: tiffASCII, count: uint32(len(b)), data: b}
}

func rationalEntry(tag uint16, v *DMS) ifdEntry {
	b := make([]byte, 0, 24)
	for _, r := range v {
		b = binary.LittleEndian.AppendUint32(b, r[0])
		b = binary.LittleEndian.AppendUint32(b, r[1])
	}
	return ifdEntry{tag: tag, typ: tiffRational, count: 3, data: b}
}

// JPEGWithExif builds a minimal JPEG whose APP1 segment holds a
// little-endian TIFF structure with the requested tags.
func JPEGWithExif(p Photo) []byte {
	var ifd0, exifIFD, gpsIFD []ifdEntry

	if p.DateTime != "" {
		ifd0 = append(ifd0, asciiEntry(tagDateTime, p.DateTime))
	}
	if p.DateOriginal != "" {
		exifIFD = append(exifIFD, asciiEntry(tagDateTimeOriginal, p.DateOriginal))
	}
	if p.LatRef != "" {
		gpsIFD = append(gpsIFD, asciiEntry(tagGPSLatitudeRef, p.LatRef))
	}
	if p.Lat != nil {
		gpsIFD = append(gpsIFD, rationalEntry(tagGPSLatitude, p.Lat))
	}
	if p.LonRef != "" {
		gpsIFD = append(gpsIFD, asciiEntry(tagGPSLongitudeRef, p.LonRef))
	}
	if p.Lon != nil {
		gpsIFD = append(gpsIFD, rationalEntry(tagGPSLongitude, p.Lon))
	}

	ifdSize := func(n int) uint32 { return uint32(2 + 12*n + 4) }

	n0 := len(ifd0)
	if len(exifIFD) > 0 {
		n0++
	}
	if len(gpsIFD) > 0 {
		n0++
	}

	ifd0Off := uint32(8)
	exifOff := ifd0Off + ifdSize(n0)
	gpsOff := exifOff
	if len(exifIFD) > 0 {
		gpsOff += ifdSize(len(exifIFD))
	}
	dataOff := gpsOff
	if len(gpsIFD) > 0 {
		dataOff += ifdSize(len(gpsIFD))
	}

	pointer := func(tag uint16, off uint32) ifdEntry {
		return ifdEntry{tag: tag, typ: tiffLong, count: 1, data: binary.LittleEndian.AppendUint32(nil, off)}
	}
	if len(exifIFD) > 0 {
		ifd0 = append(ifd0, pointer(tagExifIFD, exifOff))
	}
	if len(gpsIFD) > 0 {
		ifd0 = append(ifd0, pointer(tagGPSIFD, gpsOff))
	}

	var dirs, data bytes.Buffer
	writeIFD := func(entries []ifdEntry) {
		sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })
		binary.Write(&dirs, binary.LittleEndian, uint16(len(entries)))
		for _, e := range entries {
			binary.Write(&dirs, binary.LittleEndian, e.tag)
			binary.Write(&dirs, binary.LittleEndian, e.typ)
			binary.Write(&dirs, binary.LittleEndian, e.count)
			if len(e.data) <= 4 {
				inline := make([]byte, 4)
				copy(inline, e.data)
				dirs.Write(inline)
				continue
			}
			binary.Write(&dirs, binary.LittleEndian, dataOff+uint32(data.Len()))
			data.Write(e.data)
			if data.Len()%2 == 1 {
				data.WriteByte(0)
			}
		}
		binary.Write(&dirs, binary.LittleEndian, uint32(0))
	}

	writeIFD(ifd0)
	if len(exifIFD) > 0 {
		writeIFD(exifIFD)
	}
	if len(gpsIFD) > 0 {
		writeIFD(gpsIFD)
	}

	var tiff bytes.Buffer
	tiff.WriteString("II")
	binary.Write(&tiff, binary.LittleEndian, uint16(42))
	binary.Write(&tiff, binary.LittleEndian, ifd0Off)
	tiff.Write(dirs.Bytes())
	tiff.Write(data.Bytes())

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8})
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}

// PlainJPEG is a JPEG header without any APP1 segment.
func PlainJPEG() []byte {
	return []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x04, 0x00, 0x00, 0xFF, 0xD9}
}
