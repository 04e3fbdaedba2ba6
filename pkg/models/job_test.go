package models_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/varunv-ux/getglow/pkg/models"
)

func TestIsTerminalStatus(t *testing.T) {
	assert.False(t, models.IsTerminalStatus(models.JobStatusPending))
	assert.False(t, models.IsTerminalStatus(models.JobStatusProcessing))
	assert.True(t, models.IsTerminalStatus(models.JobStatusCompleted))
	assert.True(t, models.IsTerminalStatus(models.JobStatusFailed))
	assert.False(t, models.IsTerminalStatus(""))
}

func TestOwnedBy(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()

	public := &models.AnalysisJob{}
	assert.True(t, public.OwnedBy(nil))
	assert.True(t, public.OwnedBy(&stranger))

	owned := &models.AnalysisJob{OwnerID: &owner}
	assert.True(t, owned.OwnedBy(&owner))
	assert.False(t, owned.OwnedBy(&stranger))
	assert.False(t, owned.OwnedBy(nil))
}

func TestToScores_Clamped(t *testing.T) {
	report := &models.WellnessReport{
		OverallScore:     150,
		SkinScore:        -10,
		EyeScore:         80,
		CirculationScore: 100,
		SymmetryScore:    0,
	}

	scores := report.ToScores()
	assert.Equal(t, 100, scores.Overall)
	assert.Equal(t, 0, scores.Skin)
	assert.Equal(t, 80, scores.Eye)
	assert.Equal(t, 100, scores.Circulation)
	assert.Equal(t, 0, scores.Symmetry)
}
