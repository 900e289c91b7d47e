package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const watermarkFile = "_watermarks.json"

// watermarks - 테이블별 마지막으로 내보낸 id
type watermarks struct {
	Metrics int64 `json:"metrics"`
	Alerts  int64 `json:"alerts"`
}

func loadWatermarks(root string) (watermarks, error) {
	var wm watermarks
	data, err := os.ReadFile(filepath.Join(root, watermarkFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return wm, nil
		}
		return wm, fmt.Errorf("read watermarks: %w", err)
	}
	if err := json.Unmarshal(data, &wm); err != nil {
		return wm, fmt.Errorf("parse watermarks: %w", err)
	}
	return wm, nil
}

func (wm watermarks) save(root string) error {
	data, err := json.Marshal(wm)
	if err != nil {
		return err
	}
	path := filepath.Join(root, watermarkFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write watermarks: %w", err)
	}
	return os.Rename(tmp, path)
}
