package services

import (
	"os"
	"path/filepath"
)

// StorageLayout resolves the on-disk directory structure for a camera's
// media. Each camera owns a subtree under the storage root:
//
//	<root>/<camera>/frames/                still frames
//	<root>/<camera>/timelapses/            daily and manual renders
//	<root>/<camera>/continuous_timelapses/ continuous-mode renders
type StorageLayout struct {
	Root string
}

// FramesDir returns the frame directory for a camera
func (l StorageLayout) FramesDir(camera string) string {
	return filepath.Join(l.Root, camera, "frames")
}

// TimelapsesDir returns the directory for daily and manual renders
func (l StorageLayout) TimelapsesDir(camera string) string {
	return filepath.Join(l.Root, camera, "timelapses")
}

// ContinuousDir returns the directory for continuous-mode renders
func (l StorageLayout) ContinuousDir(camera string) string {
	return filepath.Join(l.Root, camera, "continuous_timelapses")
}

// FramePattern returns the glob matching all of a camera's frame files
func (l StorageLayout) FramePattern(camera, ext string) string {
	return filepath.Join(l.FramesDir(camera), camera+"_*."+ext)
}

// EnsureCameraDirs creates the camera's directory subtree
func (l StorageLayout) EnsureCameraDirs(camera string) error {
	for _, dir := range []string{l.FramesDir(camera), l.TimelapsesDir(camera), l.ContinuousDir(camera)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
