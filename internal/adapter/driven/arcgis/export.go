package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
)

// SubmitExport submits an export item request and returns the job id and the
// id of the item the export writes to. It does not wait for completion.
func (c *Client) SubmitExport(ctx context.Context, req model.ExportRequest) (model.ExportJob, error) {
	format := req.ExportFormat
	if format == "" {
		format = model.DefaultExportFormat
	}

	form := url.Values{}
	form.Set("itemId", req.ItemID)
	form.Set("exportFormat", format)
	if req.ResultItemID != "" {
		form.Set("resultItemId", req.ResultItemID)
	}
	form.Set("overwrite", strconv.FormatBool(req.Overwrite))

	body, err := c.postForm(ctx, c.userURL("export"), form)
	if err != nil {
		return model.ExportJob{}, fmt.Errorf("submit export of item %s: %w", req.ItemID, err)
	}

	job := model.ExportJob{
		JobID:  gjson.GetBytes(body, "jobId").String(),
		ItemID: gjson.GetBytes(body, "exportItemId").String(),
	}
	if job.JobID == "" || job.ItemID == "" {
		return model.ExportJob{}, fmt.Errorf("export response for item %s is missing jobId or exportItemId: %s", req.ItemID, truncate(body, 300))
	}

	slog.Info("export submitted",
		"item_id", req.ItemID,
		"export_format", format,
		"export_item_id", job.ItemID,
		"job_id", job.JobID,
		"overwrite", req.Overwrite,
	)
	return job, nil
}

// JobStatus performs one status check. The returned status keeps the full
// response body in Raw.
func (c *Client) JobStatus(ctx context.Context, ref model.JobRef) (model.JobStatus, error) {
	jobType := ref.Type
	if jobType == "" {
		jobType = model.JobTypeExport
	}

	form := url.Values{}
	form.Set("jobType", string(jobType))
	form.Set("jobId", ref.JobID)

	// The status endpoint is documented with a trailing slash.
	endpoint := c.userURL("items", ref.ItemID, "status") + "/"
	body, err := c.postForm(ctx, endpoint, form)
	if err != nil {
		return model.JobStatus{}, fmt.Errorf("check status of %s job %s: %w", jobType, ref.JobID, err)
	}

	status := gjson.GetBytes(body, "status")
	if !status.Exists() {
		return model.JobStatus{}, fmt.Errorf("status response for job %s has no status: %s", ref.JobID, truncate(body, 300))
	}

	ref.Type = jobType
	return model.JobStatus{
		Ref:     ref,
		Status:  status.String(),
		Message: gjson.GetBytes(body, "statusMessage").String(),
		Raw:     json.RawMessage(body),
	}, nil
}
