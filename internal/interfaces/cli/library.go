package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diagnovera/diagnovera/internal/bootstrap"
	"github.com/diagnovera/diagnovera/internal/domain/complexplane"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

func newLibraryCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Work with reference-library files locally",
	}
	cmd.AddCommand(
		newLibraryBuildCommand(rt),
		newLibraryValidateCommand(rt),
	)
	return cmd
}

// buildFileInput is the on-disk form of one profile-build request.
type buildFileInput struct {
	DiseaseID    string                  `json:"disease_id"`
	Description  string                  `json:"description,omitempty"`
	Category     string                  `json:"category,omitempty"`
	Sources      []string                `json:"sources,omitempty"`
	Confidence   float64                 `json:"confidence,omitempty"`
	Observations clinical.ObservationSet `json:"observations"`
}

func newLibraryBuildCommand(rt *runtime) *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Map raw observations into a profile record",
		Long:  "Reads a build-input JSON file, runs the complex-plane mapping, and prints\nthe resulting profile record without persisting anything.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var input buildFileInput
			if err := readJSONFile(inputPath, &input); err != nil {
				return fmt.Errorf("read build input: %w", err)
			}
			if input.DiseaseID == "" {
				return fmt.Errorf("build input has no disease id")
			}

			_, mapper := bootstrap.NewMapper(rt.cfg.Engine, rt.logger)
			profile, err := mapper.MapProfile(input.DiseaseID, input.Description, input.Observations)
			if err != nil {
				return err
			}
			profile.Category = input.Category
			profile.Sources = input.Sources
			profile.Confidence = input.Confidence

			return rt.printResult(cmd, profile.Record())
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "build-input JSON file (required)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newLibraryValidateCommand(rt *runtime) *cobra.Command {
	var libraryPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every record in a library file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []clinical.ProfileRecord
			if err := readJSONFile(libraryPath, &records); err != nil {
				return fmt.Errorf("read library: %w", err)
			}

			type problem struct {
				DiseaseID string `json:"disease_id"`
				Error     string `json:"error"`
			}
			report := struct {
				Total    int       `json:"total"`
				Valid    int       `json:"valid"`
				Problems []problem `json:"problems,omitempty"`
			}{Total: len(records)}

			for _, rec := range records {
				if _, err := complexplane.ProfileFromRecord(rec); err != nil {
					report.Problems = append(report.Problems, problem{
						DiseaseID: rec.DiseaseID,
						Error:     err.Error(),
					})
					continue
				}
				report.Valid++
			}

			if err := rt.printResult(cmd, report); err != nil {
				return err
			}
			if len(report.Problems) > 0 {
				return fmt.Errorf("%d of %d records are invalid", len(report.Problems), report.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&libraryPath, "library", "l", "", "reference-library JSON file (required)")
	_ = cmd.MarkFlagRequired("library")
	return cmd
}
