package services

import (
	"sync"
	"time"

	"github.com/timelapser/server/internal/models"
)

// GenerationPolicy decides when a camera's continuous timelapse should be
// re-rendered. In periodic mode each camera carries a watermark of the last
// render time; the first evaluation after startup fires immediately so a
// recording camera always has a current video.
type GenerationPolicy struct {
	mu        sync.Mutex
	lastFired map[string]time.Time
}

// NewGenerationPolicy creates a new GenerationPolicy
func NewGenerationPolicy() *GenerationPolicy {
	return &GenerationPolicy{
		lastFired: make(map[string]time.Time),
	}
}

// ShouldGenerate reports whether a render should fire for the camera now.
// A true result advances the camera's watermark.
func (p *GenerationPolicy) ShouldGenerate(camera string, mode models.GenerationMode, frequency time.Duration, now time.Time) bool {
	switch mode {
	case models.GenerateEveryCapture:
		return true
	case models.GenerateManualOnly:
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	last, seen := p.lastFired[camera]
	if !seen || now.Sub(last) >= frequency {
		p.lastFired[camera] = now
		return true
	}
	return false
}

// Reset clears the camera's watermark so the next periodic evaluation fires
func (p *GenerationPolicy) Reset(camera string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.lastFired, camera)
}
