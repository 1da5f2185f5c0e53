// Package groups loads the list of groups to report on.
package groups

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Group maps a display name to a GitLab group. ID is the numeric id or the
// full group path.
type Group struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	ID   string `yaml:"id"   json:"id"   validate:"required"`
}

type Config struct {
	Groups []Group `yaml:"groups" validate:"required,min=1,unique=Name,dive"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	return &cfg, nil
}
