package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/repository"
)

func TestUpdateStatusIsVersioned(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := &models.Resume{FileName: "cv.pdf"}
	require.NoError(t, s.CreateResume(ctx, r))
	assert.Equal(t, 1, r.Version)
	assert.Equal(t, models.StatusUploaded, r.Status)

	updated, err := s.UpdateStatus(ctx, repository.StatusUpdate{ID: r.ID, ExpectedVersion: 1, Status: models.StatusParsing})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	_, err = s.UpdateStatus(ctx, repository.StatusUpdate{ID: r.ID, ExpectedVersion: 1, Status: models.StatusFailed})
	assert.ErrorIs(t, err, repository.ErrStaleVersion)
}

func TestCreateSkillIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, err := s.CreateSkill(ctx, &models.Skill{Name: "Python", Category: models.SkillTechnical})
	require.NoError(t, err)
	second, err := s.CreateSkill(ctx, &models.Skill{Name: "python", Category: models.SkillOther})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Python", second.Name)

	found, err := s.FindSkillByName(ctx, " PYTHON ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestUpsertJobAndMatchAreIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := &models.Resume{}
	require.NoError(t, s.CreateResume(ctx, r))

	j1, err := s.UpsertJob(ctx, &models.Job{Title: "Backend Engineer", Company: "Acme", Location: "Remote"})
	require.NoError(t, err)
	j2, err := s.UpsertJob(ctx, &models.Job{Title: "Backend Engineer", Company: "Acme", Location: "Berlin"})
	require.NoError(t, err)
	assert.Equal(t, j1.ID, j2.ID)

	require.NoError(t, s.UpsertMatch(ctx, &models.JobMatch{ResumeID: r.ID, JobID: j1.ID, MatchScore: 40}))
	require.NoError(t, s.UpsertMatch(ctx, &models.JobMatch{ResumeID: r.ID, JobID: j1.ID, MatchScore: 80}))

	matches, err := s.ListMatches(ctx, r.ID, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 80, matches[0].MatchScore)
	assert.Equal(t, "Berlin", matches[0].Job.Location)

	n, err := s.DeleteMatches(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestListJobsWithSkillsKeepsBareCatalogueJobs(t *testing.T) {
	ctx := context.Background()
	s := New()
	sk, err := s.CreateSkill(ctx, &models.Skill{Name: "Go"})
	require.NoError(t, err)

	gopher, err := s.UpsertJob(ctx, &models.Job{Title: "Gopher", Company: "Acme", Source: models.JobSourceCatalog})
	require.NoError(t, err)
	require.NoError(t, s.SetJobSkills(ctx, gopher.ID, []models.JobSkill{{SkillID: sk.ID, Required: true}}))
	_, err = s.UpsertJob(ctx, &models.Job{Title: "Apprentice", Company: "Acme", Source: models.JobSourceCatalog})
	require.NoError(t, err)
	_, err = s.UpsertJob(ctx, &models.Job{Title: "Dreamed Up", Company: "Nowhere", Source: models.JobSourceAIGenerated})
	require.NoError(t, err)

	jobs, err := s.ListJobsWithSkills(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Apprentice", jobs[0].Job.Title)
	assert.Empty(t, jobs[0].Skills)
	assert.Equal(t, "Gopher", jobs[1].Job.Title)
	require.Len(t, jobs[1].Skills, 1)
	assert.Equal(t, "Go", jobs[1].Skills[0].SkillName)
}

func TestClearDerived(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := &models.Resume{}
	require.NoError(t, s.CreateResume(ctx, r))
	require.NoError(t, s.ReplaceParsedDocument(ctx, &models.ParsedDocument{ResumeID: r.ID, RawText: "x"}))
	require.NoError(t, s.InsertAnalysis(ctx, &models.Analysis{ResumeID: r.ID}))

	require.NoError(t, s.ClearDerived(ctx, r.ID))

	_, err := s.GetParsedDocument(ctx, r.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.LatestAnalysis(ctx, r.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
