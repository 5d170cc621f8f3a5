// Package images defines the contracts for the external image
// pipeline and storage collaborators. The core never inspects image
// bytes itself; it only consumes the location/timestamp judgment and
// the stored URLs.
package images

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// GPS is a decoded EXIF coordinate.
type GPS struct {
	Lat float64
	Lng float64
}

// ExifData is the minimal judgment the pipeline returns about a photo.
type ExifData struct {
	GPS     *GPS
	TakenAt *time.Time
}

// ExifExtractor reads the minimal EXIF fields used for submission
// gating. An empty ExifData is a valid answer for photos without
// metadata.
type ExifExtractor interface {
	ExtractMinimalExif(data []byte) (ExifData, error)
}

// Compressor strips metadata and recompresses a photo for storage.
type Compressor interface {
	StripAndCompress(data []byte) ([]byte, error)
}

// Store persists cleaned image bytes and returns a public URL. Opaque
// to the core: only URLs flow into complaint evidence lists.
type Store interface {
	Store(data []byte) (string, error)
}

// Pipeline bundles the three collaborators for handler wiring.
type Pipeline struct {
	Exif       ExifExtractor
	Compressor Compressor
	Store      Store
}

// NoopExtractor reports no EXIF data for any photo.
type NoopExtractor struct{}

func (NoopExtractor) ExtractMinimalExif(data []byte) (ExifData, error) {
	return ExifData{}, nil
}

// NoopCompressor passes bytes through unchanged.
type NoopCompressor struct{}

func (NoopCompressor) StripAndCompress(data []byte) ([]byte, error) {
	return data, nil
}

// HashURLStore derives a stable content-addressed URL without storing
// anything. It stands in for a real object store in development.
type HashURLStore struct {
	BaseURL string
}

func (s HashURLStore) Store(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return s.BaseURL + "/" + hex.EncodeToString(sum[:8]) + ".jpg", nil
}

// NewLocalPipeline returns the development pipeline: no EXIF judgment,
// no recompression, content-addressed URLs.
func NewLocalPipeline(baseURL string) *Pipeline {
	return &Pipeline{
		Exif:       NoopExtractor{},
		Compressor: NoopCompressor{},
		Store:      HashURLStore{BaseURL: baseURL},
	}
}
