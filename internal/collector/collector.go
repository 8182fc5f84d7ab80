package collector

import (
	"context"

	"github.com/toman-eng/devflow-metrics/internal/domain"
)

// Collector defines the interface for fetching GitLab data
type Collector interface {
	// CollectProject retrieves the full record snapshot for one
	// project within the window
	CollectProject(ctx context.Context, projectPath string, window domain.TimeWindow) (*domain.Input, error)

	// CollectGroup retrieves snapshots for every project of a group,
	// including subgroups
	CollectGroup(ctx context.Context, groupPath string, window domain.TimeWindow) ([]*domain.Input, error)
}

// ProgressCallback is a callback function for reporting progress
type ProgressCallback func(project string, progress float64)
