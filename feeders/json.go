package feeders

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
)

// JSONFeeder reads JSON files. Comments and trailing commas are accepted, so
// the same feeder serves .json and .jsonc files.
type JSONFeeder struct {
	Path string
}

// NewJSONFeeder creates a new JSONFeeder that reads from the specified file
func NewJSONFeeder(filePath string) JSONFeeder {
	return JSONFeeder{Path: filePath}
}

// Feed decodes the whole file into target.
func (j JSONFeeder) Feed(target any) error {
	data, err := readFile(j.Path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), target); err != nil {
		return fmt.Errorf("json: %s: %w", j.Path, err)
	}
	return nil
}
