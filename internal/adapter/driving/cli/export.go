package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
)

var (
	exportResultItemID string
	exportFormat       string
	exportOverwrite    bool
	waitJobType        string
)

var exportCmd = &cobra.Command{
	Use:   "export <item-id>",
	Short: "Export an item and wait for the job to finish",
	Long: `Submits an export of the given item and polls the export job until it
completes or fails. With --result-item-id the export writes into an existing
item; --overwrite replaces its data.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var waitCmd = &cobra.Command{
	Use:   "wait <item-id> <job-id>",
	Short: "Poll an existing portal job until it finishes",
	Args:  cobra.ExactArgs(2),
	RunE:  runWait,
}

func init() {
	exportCmd.Flags().StringVar(&exportResultItemID, "result-item-id", "", "existing item to export into")
	exportCmd.Flags().StringVar(&exportFormat, "format", model.DefaultExportFormat, "export format")
	exportCmd.Flags().BoolVar(&exportOverwrite, "overwrite", false, "overwrite the result item")
	waitCmd.Flags().StringVar(&waitJobType, "job-type", string(model.JobTypeExport), "job type: export or publish")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(waitCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	_, client, err := a.portal(ctx)
	if err != nil {
		return err
	}

	req := model.ExportRequest{
		ItemID:       args[0],
		ExportFormat: exportFormat,
		ResultItemID: exportResultItemID,
		Overwrite:    exportOverwrite,
	}
	job, status, err := a.jobRunner(client).Export(ctx, req)
	if err != nil {
		return err
	}

	cmd.Printf("Export job %s %s, result item %s.\n", job.JobID, status.Status, job.ItemID)
	return nil
}

func runWait(cmd *cobra.Command, args []string) error {
	jobType := model.JobType(waitJobType)
	if jobType != model.JobTypeExport && jobType != model.JobTypePublish {
		return fmt.Errorf("unknown job type %q: must be %s or %s", waitJobType, model.JobTypeExport, model.JobTypePublish)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	_, client, err := a.portal(ctx)
	if err != nil {
		return err
	}

	ref := model.JobRef{ItemID: args[0], JobID: args[1], Type: jobType}
	status, err := a.jobRunner(client).Wait(ctx, ref)
	if err != nil {
		return err
	}

	cmd.Printf("%s job %s %s.\n", jobType, ref.JobID, status.Status)
	return nil
}
