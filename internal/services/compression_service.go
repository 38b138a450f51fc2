package services

import (
	"fmt"
	"os"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/timelapser/server/internal/observability"
)

// minJPEGQuality is the floor for the quality ladder. Below this the
// output is visibly degraded without much size benefit.
const minJPEGQuality = 20

// CompressionService shrinks oversized JPEG frames by stepping encoding
// quality down until the file fits the configured size limit.
type CompressionService struct {
	logger *observability.Logger
}

// NewCompressionService creates a new CompressionService
func NewCompressionService() *CompressionService {
	return &CompressionService{
		logger: observability.GetLogger().WithField("service", "compression"),
	}
}

// CompressIfNeeded rewrites the file in place if it exceeds maxSizeKB.
// Non-JPEG files and files already under the limit are left untouched.
// Compression failures are logged and swallowed: an oversized frame is
// better than a lost one.
func (s *CompressionService) CompressIfNeeded(path string, maxSizeKB, startQuality, qualityStep int) {
	if maxSizeKB <= 0 {
		return
	}

	lower := strings.ToLower(path)
	if !strings.HasSuffix(lower, ".jpg") && !strings.HasSuffix(lower, ".jpeg") {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		return
	}

	maxBytes := int64(maxSizeKB) * 1024
	if info.Size() <= maxBytes {
		return
	}

	if startQuality <= 0 || startQuality > 100 {
		startQuality = 75
	}
	if qualityStep <= 0 {
		qualityStep = 10
	}

	img, err := imaging.Open(path)
	if err != nil {
		s.logger.Warnf("Cannot open %s for compression: %v", path, err)
		return
	}

	for quality := startQuality; quality >= minJPEGQuality; quality -= qualityStep {
		if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
			s.logger.Warnf("Compression write failed for %s: %v", path, err)
			return
		}

		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.Size() <= maxBytes {
			s.logger.Debugf("Compressed %s to %d bytes at quality %d", path, info.Size(), quality)
			return
		}
	}

	s.logger.Debug(fmt.Sprintf("File %s still over %dKB at minimum quality", path, maxSizeKB))
}
