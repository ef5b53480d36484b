package driven

import (
	"context"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
)

// FeedFetcher downloads the traveler information feeds into a staging directory.
type FeedFetcher interface {
	Fetch(ctx context.Context, stagingDir string) ([]model.FeedResult, error)
}

// PackageBuilder produces the zipped file geodatabase uploaded to the portal.
// Table creation and schema details are entirely its concern.
type PackageBuilder interface {
	Build(ctx context.Context, stagingDir, packagePath string) error
}
