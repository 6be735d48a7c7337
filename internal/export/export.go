// Package export writes snapshots, analysis plots and audio/uniform clips to
// disk.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lumen/internal/log"
)

var logger = log.Component("export")

// fileName builds <prefix>_<unix ms><ext> under dir, creating dir if needed.
func fileName(dir, prefix, ext string, ts time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d%s", prefix, ts.UnixMilli(), ext)), nil
}
