package services

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// FrameMetadata is what could be extracted from a captured frame file
type FrameMetadata struct {
	Width      *int
	Height     *int
	CapturedAt *time.Time
}

// MetadataService reads image dimensions and EXIF timestamps from frames
type MetadataService struct{}

// NewMetadataService creates a new MetadataService
func NewMetadataService() *MetadataService {
	return &MetadataService{}
}

// Extract reads what metadata it can from the file. Fields that cannot be
// read stay nil; extraction never fails the capture that produced the file.
func (s *MetadataService) Extract(path string) FrameMetadata {
	var meta FrameMetadata

	if w, h, ok := decodeDimensions(path); ok {
		meta.Width = &w
		meta.Height = &h
	}

	if ts, ok := exifTimestamp(path); ok {
		meta.CapturedAt = &ts
	}

	return meta
}

func decodeDimensions(path string) (int, int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

func exifTimestamp(path string) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, false
	}

	ts, err := x.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
