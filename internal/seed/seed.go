// Package seed loads starter strategies from a YAML file into the database
// on boot, so a fresh install has something to run.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"stratbox/pkg/db"
)

// Strategy is one seed entry in the YAML file.
type Strategy struct {
	Name       string         `yaml:"name"`
	Symbol     string         `yaml:"symbol"`
	Interval   string         `yaml:"interval"`
	Source     string         `yaml:"source"`
	Parameters map[string]any `yaml:"parameters"`
}

// File is the top-level YAML structure.
type File struct {
	Strategies []Strategy `yaml:"strategies"`
}

// Load reads seed strategies from a YAML file.
func Load(path string) ([]Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return file.Strategies, nil
}

// Apply inserts seeds owned by userID, skipping names that already exist.
func Apply(ctx context.Context, database *db.Database, userID string, seeds []Strategy) error {
	existing, err := database.ListStrategiesByUser(ctx, userID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, s := range existing {
		known[s.Name] = true
	}

	for _, s := range seeds {
		if known[s.Name] {
			continue
		}
		params := "{}"
		if len(s.Parameters) > 0 {
			b, err := json.Marshal(s.Parameters)
			if err != nil {
				return fmt.Errorf("seed %q: %w", s.Name, err)
			}
			params = string(b)
		}
		interval := s.Interval
		if interval == "" {
			interval = "1m"
		}
		err := database.CreateStrategy(ctx, db.Strategy{
			ID:         uuid.NewString(),
			UserID:     userID,
			Name:       s.Name,
			Symbol:     s.Symbol,
			Interval:   interval,
			Source:     s.Source,
			Parameters: params,
			Status:     db.StrategyStopped,
		})
		if err != nil {
			return fmt.Errorf("seed %q: %w", s.Name, err)
		}
	}
	return nil
}
