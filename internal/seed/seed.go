// Package seed loads the initial office list from a YAML file.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"qms/dispatch-service/internal/models"
)

type OfficeSeed struct {
	Name    string `yaml:"name"`
	Details string `yaml:"details"`
}

type File struct {
	Offices []OfficeSeed `yaml:"offices"`
}

type OfficeCreator interface {
	ListOffices(ctx context.Context) ([]models.Office, error)
	CreateOffice(ctx context.Context, name, details string) (models.Office, error)
}

func Parse(r io.Reader) (File, error) {
	var file File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && err != io.EOF {
		return File{}, fmt.Errorf("parse office seed: %w", err)
	}
	for i, office := range file.Offices {
		if strings.TrimSpace(office.Name) == "" {
			return File{}, fmt.Errorf("parse office seed: office %d has no name", i+1)
		}
	}
	return file, nil
}

func Load(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open office seed: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Apply creates every seeded office whose name is not taken yet and returns
// how many were created. Running it twice is harmless.
func Apply(ctx context.Context, creator OfficeCreator, file File, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	existing, err := creator.ListOffices(ctx)
	if err != nil {
		return 0, err
	}
	taken := make(map[string]bool, len(existing))
	for _, office := range existing {
		taken[strings.ToLower(office.Name)] = true
	}

	created := 0
	for _, seed := range file.Offices {
		name := strings.TrimSpace(seed.Name)
		if taken[strings.ToLower(name)] {
			continue
		}
		office, err := creator.CreateOffice(ctx, name, strings.TrimSpace(seed.Details))
		if err != nil {
			return created, fmt.Errorf("seed office %q: %w", name, err)
		}
		taken[strings.ToLower(name)] = true
		created++
		logger.Info("seeded office", zap.Int64("office_id", office.OfficeID), zap.String("name", office.Name))
	}
	return created, nil
}
