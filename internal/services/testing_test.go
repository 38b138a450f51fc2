package services

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/timelapser/server/internal/ffmpeg"
	"github.com/timelapser/server/internal/models"
)

// In-memory repository fakes shared by the service tests.

type fakeCameraRepo struct {
	mu      sync.Mutex
	cameras map[string]*models.Camera // keyed by name
	updates int
}

func newFakeCameraRepo() *fakeCameraRepo {
	return &fakeCameraRepo{cameras: make(map[string]*models.Camera)}
}

func (r *fakeCameraRepo) GetByID(ctx context.Context, id string) (*models.Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cameras {
		if c.ID == id {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeCameraRepo) GetByName(ctx context.Context, name string) (*models.Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cameras[name]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCameraRepo) GetAll(ctx context.Context) ([]*models.Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*models.Camera
	for _, c := range r.cameras {
		copied := *c
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (r *fakeCameraRepo) Add(ctx context.Context, camera *models.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *camera
	r.cameras[camera.Name] = &copied
	return nil
}

func (r *fakeCameraRepo) Update(ctx context.Context, camera *models.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *camera
	r.cameras[camera.Name] = &copied
	r.updates++
	return nil
}

type fakeImageRepo struct {
	mu     sync.Mutex
	images []*models.Image
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{}
}

func (r *fakeImageRepo) GetByID(ctx context.Context, id string) (*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, img := range r.images {
		if img.ID == id {
			return img, nil
		}
	}
	return nil, nil
}

func (r *fakeImageRepo) GetByCamera(ctx context.Context, cameraID string, skip, take int) ([]*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Image
	for _, img := range r.images {
		if img.CameraID == cameraID {
			out = append(out, img)
		}
	}
	return out, nil
}

func (r *fakeImageRepo) GetCountByCamera(ctx context.Context, cameraID string) (int, error) {
	imgs, _ := r.GetByCamera(ctx, cameraID, 0, 0)
	return len(imgs), nil
}

func (r *fakeImageRepo) Add(ctx context.Context, image *models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images = append(r.images, image)
	return nil
}

func (r *fakeImageRepo) DeleteOlderThan(ctx context.Context, cameraID string, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*models.Image
	var deleted int64
	for _, img := range r.images {
		if img.CameraID == cameraID && img.CapturedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, img)
	}
	r.images = kept
	return deleted, nil
}

func (r *fakeImageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.images)
}

type fakeBatchRepo struct {
	mu      sync.Mutex
	batches map[string]*models.TimelapseBatch
}

func newFakeBatchRepo() *fakeBatchRepo {
	return &fakeBatchRepo{batches: make(map[string]*models.TimelapseBatch)}
}

func (r *fakeBatchRepo) GetByID(ctx context.Context, id string) (*models.TimelapseBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (r *fakeBatchRepo) GetProcessingByCamera(ctx context.Context, cameraID string) ([]*models.TimelapseBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TimelapseBatch
	for _, b := range r.batches {
		if b.CameraID == cameraID && b.Status == models.BatchProcessing {
			copied := *b
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeBatchRepo) Add(ctx context.Context, batch *models.TimelapseBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *batch
	r.batches[batch.ID] = &copied
	return nil
}

func (r *fakeBatchRepo) UpdateStatus(ctx context.Context, id string, status models.BatchStatus, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[id]; ok {
		b.Status = status
		b.ErrorMessage = errorMessage
		if status == models.BatchCompleted || status == models.BatchFailed {
			now := time.Now().UTC()
			b.CompletedAt = &now
		}
	}
	return nil
}

func (r *fakeBatchRepo) UpdateTotalFrames(ctx context.Context, id string, totalFrames int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[id]; ok {
		b.TotalFrames = totalFrames
	}
	return nil
}

func (r *fakeBatchRepo) UpdateOutput(ctx context.Context, id string, outputPath string, fileSizeBytes int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[id]; ok {
		b.OutputPath = outputPath
		b.FileSizeBytes = fileSizeBytes
	}
	return nil
}

func (r *fakeBatchRepo) get(id string) *models.TimelapseBatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[id]; ok {
		copied := *b
		return &copied
	}
	return nil
}

func (r *fakeBatchRepo) byStatus(status models.BatchStatus) []*models.TimelapseBatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TimelapseBatch
	for _, b := range r.batches {
		if b.Status == status {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []*models.CaptureAttempt
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{}
}

func (r *fakeAttemptRepo) Add(ctx context.Context, attempt *models.CaptureAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *fakeAttemptRepo) GetCounts(ctx context.Context) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var succeeded int64
	for _, a := range r.attempts {
		if a.Status == models.CaptureSuccess {
			succeeded++
		}
	}
	return int64(len(r.attempts)), succeeded, nil
}

func (r *fakeAttemptRepo) GetRecentByCamera(ctx context.Context, cameraID string, take int) ([]*models.CaptureAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CaptureAttempt
	for i := len(r.attempts) - 1; i >= 0 && len(out) < take; i-- {
		if r.attempts[i].CameraID == cameraID {
			out = append(out, r.attempts[i])
		}
	}
	return out, nil
}

func (r *fakeAttemptRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}

// fakeCapturer simulates ffmpeg frame grabs. failuresFor schedules how many
// attempts fail before one succeeds; emptyFile makes successful runs write
// zero bytes.
type fakeCapturer struct {
	mu          sync.Mutex
	failuresFor map[string]int // keyed by stream URL
	emptyFile   bool
	calls       int
}

func newFakeCapturer() *fakeCapturer {
	return &fakeCapturer{failuresFor: make(map[string]int)}
}

func (c *fakeCapturer) Capture(ctx context.Context, spec ffmpeg.CaptureSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.calls++
	remaining := c.failuresFor[spec.StreamURL]
	if remaining > 0 {
		c.failuresFor[spec.StreamURL] = remaining - 1
	}
	empty := c.emptyFile
	c.mu.Unlock()

	if remaining > 0 {
		return errSimulatedCapture
	}

	data := []byte("frame-data")
	if empty {
		data = nil
	}
	return os.WriteFile(spec.OutputPath, data, 0644)
}

func (c *fakeCapturer) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

var errSimulatedCapture = &models.StateError{Message: "simulated capture failure"}

// fakeEncoder records encode invocations and writes the output file
type fakeEncoder struct {
	mu    sync.Mutex
	specs []ffmpeg.EncodeSpec
	fail  bool
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{}
}

func (e *fakeEncoder) Encode(ctx context.Context, spec ffmpeg.EncodeSpec) error {
	e.mu.Lock()
	e.specs = append(e.specs, spec)
	fail := e.fail
	e.mu.Unlock()

	if fail {
		return &models.StateError{Message: "simulated encode failure"}
	}
	return os.WriteFile(spec.OutputPath, []byte("video-data"), 0644)
}

func (e *fakeEncoder) encodeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.specs)
}
