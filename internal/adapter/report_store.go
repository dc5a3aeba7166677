package adapter

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	m "paratest.dev/pkg/paratest/internal/model"
)

const reportFileName = "run-report.yaml"

// ReportStore persists run reports for later inspection. State never
// survives the reports directory: there is no cross-run behavior attached.
type ReportStore interface {
	Save(dir m.Path, report m.RunReport) (m.Path, error)
	Load(path m.Path) (m.RunReport, error)
}

type yamlReportStore struct{}

// NewReportStore constructs a yaml-backed ReportStore.
func NewReportStore() ReportStore {
	return &yamlReportStore{}
}

// Save writes the report under dir and returns the written path.
func (s *yamlReportStore) Save(dir m.Path, report m.RunReport) (m.Path, error) {
	if err := os.MkdirAll(string(dir), 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	path := filepath.Join(string(dir), reportFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	return m.Path(path), nil
}

// Load reads a report previously written by Save.
func (s *yamlReportStore) Load(path m.Path) (m.RunReport, error) {
	data, err := os.ReadFile(string(path))
	if err != nil {
		return m.RunReport{}, fmt.Errorf("read report: %w", err)
	}

	var report m.RunReport
	if err := yaml.Unmarshal(data, &report); err != nil {
		return m.RunReport{}, fmt.Errorf("decode report: %w", err)
	}

	return report, nil
}
