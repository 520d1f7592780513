package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/assessment-session-service/internal/config"
	"github.com/SAP-F-2025/assessment-session-service/internal/portal"
	"github.com/SAP-F-2025/assessment-session-service/internal/services"
	"github.com/SAP-F-2025/assessment-session-service/internal/utils"
	"github.com/SAP-F-2025/assessment-session-service/internal/validator"
)

var (
	exportToken        string
	exportJobID        string
	exportAssessmentID string
	exportOutput       string
)

var exportCmd = &cobra.Command{
	Use:   "export <application-id>",
	Short: "Download an application review as an Excel workbook",
	Long: `Fetches a submitted application from the portal and writes its review
(score, verdict, per-answer correctness) to an .xlsx file. Recruiters must
pass --job and --assessment.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportToken, "token", os.Getenv("PORTAL_TOKEN"), "portal bearer token (defaults to $PORTAL_TOKEN)")
	exportCmd.Flags().StringVar(&exportJobID, "job", "", "job id (recruiters)")
	exportCmd.Flags().StringVar(&exportAssessmentID, "assessment", "", "assessment id (recruiters)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (defaults to application-<id>.xlsx)")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportToken == "" {
		return fmt.Errorf("a portal token is required: pass --token or set PORTAL_TOKEN")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := utils.NewLogger(cfg.Environment)

	portalClient := portal.NewHTTPClient(cfg.PortalBaseURL, cfg.PortalTimeout, logger)
	reviewService := services.NewReviewService(portalClient, nil, validator.New(), logger)

	data, filename, err := reviewService.ExportApplication(cmd.Context(), exportToken, &services.ApplicationLookup{
		ApplicationID: args[0],
		JobID:         exportJobID,
		AssessmentID:  exportAssessmentID,
	})
	if err != nil {
		return fmt.Errorf("failed to export application: %w", err)
	}

	if exportOutput != "" {
		filename = exportOutput
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", filename)
	return nil
}
