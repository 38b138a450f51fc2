package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/timelapser/server/internal/models"
)

func TestGenerationPolicyEveryCapture(t *testing.T) {
	p := NewGenerationPolicy()
	now := time.Now()

	for i := 0; i < 3; i++ {
		assert.True(t, p.ShouldGenerate("driveway", models.GenerateEveryCapture, time.Hour, now))
	}
}

func TestGenerationPolicyManualOnly(t *testing.T) {
	p := NewGenerationPolicy()
	now := time.Now()

	assert.False(t, p.ShouldGenerate("driveway", models.GenerateManualOnly, time.Hour, now))
}

func TestGenerationPolicyPeriodic(t *testing.T) {
	p := NewGenerationPolicy()
	t0 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// First evaluation fires immediately and seeds the watermark.
	assert.True(t, p.ShouldGenerate("driveway", models.GeneratePeriodic, time.Hour, t0))

	// Within the interval nothing fires.
	assert.False(t, p.ShouldGenerate("driveway", models.GeneratePeriodic, time.Hour, t0.Add(30*time.Minute)))
	assert.False(t, p.ShouldGenerate("driveway", models.GeneratePeriodic, time.Hour, t0.Add(59*time.Minute)))

	// Past the interval it fires and the watermark advances.
	t1 := t0.Add(61 * time.Minute)
	assert.True(t, p.ShouldGenerate("driveway", models.GeneratePeriodic, time.Hour, t1))
	assert.False(t, p.ShouldGenerate("driveway", models.GeneratePeriodic, time.Hour, t1.Add(time.Minute)))
}

func TestGenerationPolicyPerCameraWatermarks(t *testing.T) {
	p := NewGenerationPolicy()
	t0 := time.Now()

	assert.True(t, p.ShouldGenerate("driveway", models.GeneratePeriodic, time.Hour, t0))
	// A different camera has its own watermark.
	assert.True(t, p.ShouldGenerate("garden", models.GeneratePeriodic, time.Hour, t0))
	assert.False(t, p.ShouldGenerate("driveway", models.GeneratePeriodic, time.Hour, t0))
}

func TestGenerationPolicyReset(t *testing.T) {
	p := NewGenerationPolicy()
	t0 := time.Now()

	assert.True(t, p.ShouldGenerate("driveway", models.GeneratePeriodic, time.Hour, t0))
	p.Reset("driveway")
	assert.True(t, p.ShouldGenerate("driveway", models.GeneratePeriodic, time.Hour, t0))
}
