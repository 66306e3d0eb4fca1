package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appdiag "github.com/diagnovera/diagnovera/internal/application/diagnosis"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

func writeTempJSON(t *testing.T, name string, data interface{}) string {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func testLibraryFile(t *testing.T) string {
	present := func(name string) clinical.Observation {
		yes := true
		return clinical.Observation{Name: name, Present: &yes}
	}
	// Build records through the real mapper so angles are consistent.
	out, err := runCommand(t, "library", "build", "--input", writeTempJSON(t, "mi.json", buildFileInput{
		DiseaseID:   "I21.9",
		Description: "Acute myocardial infarction",
		Observations: clinical.ObservationSet{
			clinical.DomainSubjective:  {present("chest_pain"), present("dyspnea")},
			clinical.DomainExamination: {present("diaphoresis")},
		},
	}))
	require.NoError(t, err)
	var mi clinical.ProfileRecord
	require.NoError(t, json.Unmarshal([]byte(out), &mi))

	out, err = runCommand(t, "library", "build", "--input", writeTempJSON(t, "pe.json", buildFileInput{
		DiseaseID:   "I26.99",
		Description: "Pulmonary embolism",
		Observations: clinical.ObservationSet{
			clinical.DomainSubjective: {present("dyspnea"), present("hemoptysis")},
		},
	}))
	require.NoError(t, err)
	var pe clinical.ProfileRecord
	require.NoError(t, json.Unmarshal([]byte(out), &pe))

	return writeTempJSON(t, "library.json", []clinical.ProfileRecord{mi, pe})
}

func TestDiagnoseCommand(t *testing.T) {
	yes := true
	encounterPath := writeTempJSON(t, "encounter.json", clinical.EncounterInput{
		EncounterID: "enc-1",
		Observations: clinical.ObservationSet{
			clinical.DomainSubjective:  {{Name: "chest_pain", Present: &yes}, {Name: "dyspnea", Present: &yes}},
			clinical.DomainExamination: {{Name: "diaphoresis", Present: &yes}},
		},
	})

	out, err := runCommand(t, "diagnose",
		"--encounter", encounterPath,
		"--library", testLibraryFile(t),
	)
	require.NoError(t, err)

	var result appdiag.DiagnoseResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "enc-1", result.EncounterID)
	require.NotEmpty(t, result.Rankings)
	assert.Equal(t, "I21.9", result.Rankings[0].DiseaseID, "full match must outrank partial match")
	assert.Equal(t, 2, result.Candidates)
}

func TestDiagnoseCommandTopK(t *testing.T) {
	yes := true
	encounterPath := writeTempJSON(t, "encounter.json", clinical.EncounterInput{
		Observations: clinical.ObservationSet{
			clinical.DomainSubjective: {{Name: "dyspnea", Present: &yes}},
		},
	})

	out, err := runCommand(t, "diagnose",
		"--encounter", encounterPath,
		"--library", testLibraryFile(t),
		"--top-k", "1",
	)
	require.NoError(t, err)

	var result appdiag.DiagnoseResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.Rankings, 1)
}

func TestDiagnoseCommandMissingFiles(t *testing.T) {
	_, err := runCommand(t, "diagnose",
		"--encounter", "/nonexistent/encounter.json",
		"--library", "/nonexistent/library.json",
	)
	assert.Error(t, err)
}

func TestDiagnoseCommandRequiresFlags(t *testing.T) {
	_, err := runCommand(t, "diagnose")
	assert.Error(t, err)
}
