package media

import (
	"fmt"
	"image"
	"log"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// Metadata is the subset of EXIF data surfaced to the admin panel after an
// upload.
type Metadata struct {
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	CameraMake  *string `json:"camera_make,omitempty"`
	CameraModel *string `json:"camera_model,omitempty"`
	TakenAt     *int64  `json:"taken_at,omitempty"`
}

// helper to safely get a string tag, trimming null terminators
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val := strings.Trim(strings.TrimRight(tag.String(), "\x00"), "\"")
	if val == "" {
		return nil
	}
	return &val
}

// GetImageMetadata extracts dimensions and camera EXIF data from a photo on
// disk. missing EXIF data is not an error; the struct just stays sparse.
func GetImageMetadata(filePath string) (*Metadata, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	var width, height *int
	if config, _, err := image.DecodeConfig(file); err == nil {
		w, h := config.Width, config.Height
		width = &w
		height = &h
	}

	if _, err := file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("metadata: failed to seek file %s: %w", filePath, err)
	}

	exifData, err := exif.Decode(file)
	if err != nil {
		// file simply lacks EXIF data; dimensions are still useful
		log.Printf("metadata: no EXIF data for %s: %v", filePath, err)
		return &Metadata{Width: width, Height: height}, nil
	}

	meta := &Metadata{
		Width:       width,
		Height:      height,
		CameraMake:  getString(exifData, exif.Make),
		CameraModel: getString(exifData, exif.Model),
	}

	if dt, err := exifData.DateTime(); err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	}

	return meta, nil
}
