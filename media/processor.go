package media

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/facette/natsort"
)

const PhotoFileExtension = ".jpg"

// Processor normalizes uploaded member photos into canonical JPEG files
// under the photo directory. one photo per base name: later uploads for the
// same name overwrite earlier ones.
type Processor struct {
	photoDir string
	quality  int
}

func NewProcessor(photoDir string, jpegQuality int) (*Processor, error) {
	absDir, err := filepath.Abs(photoDir)
	if err != nil {
		return nil, fmt.Errorf("invalid photo directory '%s': %w", photoDir, err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory '%s': %w", absDir, err)
	}
	return &Processor{photoDir: absDir, quality: jpegQuality}, nil
}

// PhotoDir returns the absolute path photos are written to.
func (p *Processor) PhotoDir() string { return p.photoDir }

// Result describes a finished conversion.
type Result struct {
	Filename string // canonical output filename, e.g. "JACK G.jpg"
	Path     string // absolute path on disk
}

// Process decodes the uploaded file, applies the EXIF orientation, and
// re-encodes it as a JPEG at <photoDir>/<baseName>.jpg. the output lands at
// its final path only after a complete encode, so a failed conversion never
// leaves a truncated photo behind. the input file is removed on success
// unless it already is the output path.
func (p *Processor) Process(inputPath, baseName string) (Result, error) {
	img, err := imaging.Open(inputPath, imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode uploaded image %s: %w", filepath.Base(inputPath), err)
	}

	outputFilename := baseName + PhotoFileExtension
	outputPath := filepath.Join(p.photoDir, outputFilename)

	scratch, err := os.CreateTemp(p.photoDir, ".convert-*"+PhotoFileExtension)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create scratch file: %w", err)
	}
	scratchPath := scratch.Name()

	if err := imaging.Encode(scratch, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		scratch.Close()
		os.Remove(scratchPath)
		return Result{}, fmt.Errorf("jpeg encoding failed for %s: %w", outputFilename, err)
	}
	if err := scratch.Close(); err != nil {
		os.Remove(scratchPath)
		return Result{}, fmt.Errorf("failed to flush scratch file: %w", err)
	}
	if err := os.Rename(scratchPath, outputPath); err != nil {
		os.Remove(scratchPath)
		return Result{}, fmt.Errorf("failed to move converted photo into place: %w", err)
	}

	if filepath.Clean(inputPath) != filepath.Clean(outputPath) {
		if err := os.Remove(inputPath); err != nil && !os.IsNotExist(err) {
			log.Printf("media: failed to remove uploaded temp file %s: %v", inputPath, err)
		}
	}

	log.Printf("media: converted %s -> %s", filepath.Base(inputPath), outputFilename)
	return Result{Filename: outputFilename, Path: outputPath}, nil
}

// ListPhotos returns the photo filenames in natural sort order, skipping
// subdirectories and scratch/hidden files.
func (p *Processor) ListPhotos() ([]string, error) {
	entries, err := os.ReadDir(p.photoDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	natsort.Sort(names)
	return names, nil
}
