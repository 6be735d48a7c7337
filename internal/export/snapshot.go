package export

import (
	"fmt"
	"image/png"
	"os"

	"lumen/internal/render"
)

// SnapshotPNG renders f at w×h on the CPU and writes it to
// dir/frame_<unixms>.png. It returns the file path.
func SnapshotPNG(dir string, f render.Frame, w, h int) (string, error) {
	if w <= 0 || h <= 0 {
		return "", fmt.Errorf("invalid snapshot size %dx%d", w, h)
	}
	path, err := fileName(dir, "frame", ".png", f.Timestamp)
	if err != nil {
		return "", err
	}

	img := render.Preview(&f.Uniforms, w, h)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	logger.Infof("snapshot saved to %s", path)
	return path, nil
}
