package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CameraSeed describes a camera provisioned out of band, typically with the
// token the device was flashed with.
type CameraSeed struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
	Token    string `yaml:"token"`
}

type cameraSeedFile struct {
	Cameras []CameraSeed `yaml:"cameras"`
}

// LoadCameraSeeds reads a YAML document of the form:
//
//	cameras:
//	  - id: cam-1
//	    name: Gate
//	    location: North entrance
//	    token: s3cret
func LoadCameraSeeds(path string) ([]CameraSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera seed file: %w", err)
	}

	var file cameraSeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse camera seed file: %w", err)
	}

	seen := make(map[string]bool, len(file.Cameras))
	for i, seed := range file.Cameras {
		if seed.ID == "" {
			return nil, fmt.Errorf("camera seed %d: id is required", i)
		}
		if seen[seed.ID] {
			return nil, fmt.Errorf("camera seed %d: duplicate id %q", i, seed.ID)
		}
		seen[seed.ID] = true
	}
	return file.Cameras, nil
}
