package catalog

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/model"
	"gopkg.in/yaml.v3"
)

// SeedData is the YAML layout accepted by LoadSeed
type SeedData struct {
	UMKM     []*model.UMKM    `yaml:"umkm"`
	Products []*model.Product `yaml:"products"`
}

// LoadSeed reads catalog records from a YAML file
func LoadSeed(path string) (*SeedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read seed file", goerr.V("path", path))
	}

	var data SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, goerr.Wrap(err, "failed to parse seed file", goerr.V("path", path))
	}
	return &data, nil
}
