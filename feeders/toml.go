package feeders

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// TomlFeeder is a feeder that reads TOML files
type TomlFeeder struct {
	Path string
}

// NewTomlFeeder creates a new TomlFeeder that reads from the specified TOML file
func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{Path: filePath}
}

// Feed decodes the whole file into target.
func (t TomlFeeder) Feed(target any) error {
	data, err := readFile(t.Path)
	if err != nil {
		return err
	}
	if _, err := toml.Decode(string(data), target); err != nil {
		return fmt.Errorf("toml: %s: %w", t.Path, err)
	}
	return nil
}
