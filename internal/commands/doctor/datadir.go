package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DataDirCheck verifies the activity log directory is writable when the
// activity log is enabled.
type DataDirCheck struct {
	dir     string
	enabled bool
}

func NewDataDirCheck(dir string, enabled bool) *DataDirCheck {
	return &DataDirCheck{dir: dir, enabled: enabled}
}

func (c *DataDirCheck) Name() string { return "Activity Log" }

func (c *DataDirCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if !c.enabled {
		result.add(Pass("disabled", "set activity.enabled to record room events"))
		return result
	}

	if err := writable(c.dir); err != nil {
		result.add(Fail(c.dir, err.Error()))
		return result
	}

	result.add(Pass(c.dir, "writable"))
	return result
}

func writable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("write scratch file: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
