package driven

import (
	"context"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
)

// ContentClient defines the driven port for portal content management: the
// item search, upload and publish calls the sync workflow depends on.
type ContentClient interface {
	// Search returns every item whose title, owner and type match the query exactly.
	Search(ctx context.Context, query model.ItemQuery) ([]model.Item, error)
	// EnsureFolder returns the id of the user's folder with the given title,
	// creating it when absent. An empty title means the root folder ("").
	EnsureFolder(ctx context.Context, title string) (string, error)
	// AddItem uploads the file at dataPath as a new item in folderID.
	AddItem(ctx context.Context, item model.NewItem, folderID, dataPath string) (model.Item, error)
	// UpdateItemData replaces the data file of an existing item.
	UpdateItemData(ctx context.Context, itemID, dataPath string) error
	// Publish starts publishing a hosted service from an uploaded item.
	Publish(ctx context.Context, req model.PublishRequest) (model.PublishResult, error)
}

// JobClient defines the driven port for asynchronous portal jobs.
type JobClient interface {
	// SubmitExport submits an export item request. It does not wait for the job.
	SubmitExport(ctx context.Context, req model.ExportRequest) (model.ExportJob, error)
	// JobStatus performs a single status check for the referenced job.
	JobStatus(ctx context.Context, ref model.JobRef) (model.JobStatus, error)
}
