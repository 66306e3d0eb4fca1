package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appdiag "github.com/diagnovera/diagnovera/internal/application/diagnosis"
	"github.com/diagnovera/diagnovera/internal/bootstrap"
	"github.com/diagnovera/diagnovera/internal/domain/complexplane"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

// staticProfileSource serves an in-memory candidate set.  It lets the CLI
// run the full scoring pipeline without Postgres or Redis.
type staticProfileSource struct {
	profiles []*complexplane.Profile
}

func (s *staticProfileSource) ActiveProfiles(context.Context) ([]*complexplane.Profile, error) {
	return s.profiles, nil
}

func newDiagnoseCommand(rt *runtime) *cobra.Command {
	var (
		encounterPath string
		libraryPath   string
		topK          int
	)

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Score one encounter against a local reference library",
		Long:  "Reads an encounter JSON file and a reference-library JSON file, runs the\nfull mapping and scoring pipeline locally, and prints the ranked\ndifferential diagnosis.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var input clinical.EncounterInput
			if err := readJSONFile(encounterPath, &input); err != nil {
				return fmt.Errorf("read encounter: %w", err)
			}

			var records []clinical.ProfileRecord
			if err := readJSONFile(libraryPath, &records); err != nil {
				return fmt.Errorf("read library: %w", err)
			}

			_, mapper := bootstrap.NewMapper(rt.cfg.Engine, rt.logger)
			engine, err := bootstrap.NewEngine(rt.cfg.Engine, rt.logger)
			if err != nil {
				return err
			}

			source := &staticProfileSource{}
			for _, rec := range records {
				profile, err := complexplane.ProfileFromRecord(rec)
				if err != nil {
					rt.logger.Warn("skipping invalid profile record",
						logging.String("disease_id", rec.DiseaseID),
						logging.Err(err),
					)
					continue
				}
				source.profiles = append(source.profiles, profile)
			}

			svc, err := appdiag.NewService(appdiag.Deps{
				Mapper:   mapper,
				Engine:   engine,
				Profiles: source,
				Logger:   rt.logger,
			})
			if err != nil {
				return err
			}

			if topK > 0 {
				input.TopK = topK
			}
			result, err := svc.Diagnose(cmd.Context(), &appdiag.DiagnoseInput{
				EncounterID:  input.EncounterID,
				Observations: input.Observations,
				Prior:        input.Prior,
				TopK:         input.TopK,
			})
			if err != nil {
				return err
			}
			return rt.printResult(cmd, result)
		},
	}

	cmd.Flags().StringVarP(&encounterPath, "encounter", "e", "", "encounter JSON file (required)")
	cmd.Flags().StringVarP(&libraryPath, "library", "l", "", "reference-library JSON file (required)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "override the ranked-list cutoff (tighten only)")
	_ = cmd.MarkFlagRequired("encounter")
	_ = cmd.MarkFlagRequired("library")
	return cmd
}

func readJSONFile(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
