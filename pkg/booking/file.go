package booking

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadOverrides reads a request file for a one-off run. JSON files are read
// with the YAML decoder, so both formats use the same snake_case keys.
func LoadOverrides(path string) (Overrides, error) {
	var o Overrides

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml", ".json":
	default:
		return o, fmt.Errorf("unsupported request file type: %s", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("read request file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &o); err != nil {
		return o, fmt.Errorf("parse request file %s: %w", path, err)
	}
	return o, nil
}
