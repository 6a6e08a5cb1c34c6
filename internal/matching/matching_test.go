package matching

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/resumeflow/internal/apperr"
	"github.com/nikhilbhutani/resumeflow/internal/config"
	"github.com/nikhilbhutani/resumeflow/internal/llm"
	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/repository/memory"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name           string
		mr, tr, mo, to int
		want           int
	}{
		{"four of five required, all optional", 4, 5, 2, 2, 86},
		{"two of five required, no optional", 2, 5, 0, 2, 28},
		{"no required skills, no optional matched", 0, 0, 0, 3, 70},
		{"no required and no optional skills", 0, 0, 0, 0, 70},
		{"everything", 3, 3, 1, 1, 100},
		{"required only job", 1, 3, 0, 0, 23},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.mr, tt.tr, tt.mo, tt.to))
		})
	}
}

func edge(name string, required bool) models.JobSkill {
	return models.JobSkill{SkillID: uuid.New(), SkillName: name, Required: required}
}

func TestScoreJobs(t *testing.T) {
	job := models.JobWithSkills{
		Job: models.Job{Title: "Backend Engineer"},
		Skills: []models.JobSkill{
			edge("Go", true), edge("SQL", true), edge("Docker", true), edge("Git", true), edge("REST", true),
			edge("Kafka", false), edge("Kubernetes", false),
		},
	}
	unrelated := models.JobWithSkills{
		Job:    models.Job{Title: "Chef"},
		Skills: []models.JobSkill{edge("Cooking", true)},
	}

	a := ScoreJobs(NewSkillSet(nil, "go", "sql", "docker", "git", "kafka", "kubernetes"), []models.JobWithSkills{job, unrelated})
	require.Len(t, a, 1)
	assert.Equal(t, 86, a[0].Score)
	assert.Equal(t, []string{"REST"}, a[0].MissingSkills)

	b := ScoreJobs(NewSkillSet(nil, "Go", "SQL"), []models.JobWithSkills{job})
	require.Len(t, b, 1)
	assert.Equal(t, 28, b[0].Score)
	assert.ElementsMatch(t, []string{"Docker", "Git", "REST"}, b[0].MissingSkills)
}

func TestScoreJobsKeepsJobsWithoutRequiredSkills(t *testing.T) {
	bare := models.JobWithSkills{Job: models.Job{Title: "Generalist"}}
	optionalOnly := models.JobWithSkills{
		Job:    models.Job{Title: "Tinkerer"},
		Skills: []models.JobSkill{edge("Rust", false), edge("Go", false)},
	}
	chef := models.JobWithSkills{
		Job:    models.Job{Title: "Chef"},
		Skills: []models.JobSkill{edge("Cooking", true)},
	}

	got := ScoreJobs(NewSkillSet(nil, "Python"), []models.JobWithSkills{chef, bare, optionalOnly})
	require.Len(t, got, 2)
	for _, s := range got {
		assert.Equal(t, 70, s.Score, s.Job.Title)
		assert.Empty(t, s.MissingSkills)
	}

	withGo := ScoreJobs(NewSkillSet(nil, "Go"), []models.JobWithSkills{bare, optionalOnly})
	require.Len(t, withGo, 2)
	assert.Equal(t, "Tinkerer", withGo[0].Job.Title)
	assert.Equal(t, 85, withGo[0].Score)
}

func TestScoreJobsMatchesByID(t *testing.T) {
	sk := models.Skill{ID: uuid.New(), Name: "Golang"}
	job := models.JobWithSkills{
		Job:    models.Job{Title: "Gopher"},
		Skills: []models.JobSkill{{SkillID: sk.ID, SkillName: "Go (renamed)", Required: true}},
	}
	got := ScoreJobs(NewSkillSet([]models.Skill{sk}), []models.JobWithSkills{job})
	require.Len(t, got, 1)
	assert.Equal(t, 70, got[0].Score)
}

type fakeCompleter struct {
	content string
	calls   int
}

func (f *fakeCompleter) Complete(context.Context, llm.CompletionRequest) (*llm.ChatResponse, error) {
	f.calls++
	return &llm.ChatResponse{Content: f.content}, nil
}

func generatedJobs(n int) string {
	s := `{"jobs": [`
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf(`{"title": "Role %d", "company": "Co %d", "match_score": %d, "matching_skills": ["Go"], "missing_skills": ["Rust"], "salary_min": 1000.4}`, i, i, 50+i)
	}
	return s + `]}`
}

type fixture struct {
	store  *memory.Store
	resume *models.Resume
	ai     *fakeCompleter
	orch   *Orchestrator
}

func newFixture(t *testing.T, parsedSkills []string, aiContent string) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	r := &models.Resume{}
	require.NoError(t, store.CreateResume(ctx, r))
	require.NoError(t, store.ReplaceParsedDocument(ctx, &models.ParsedDocument{
		ResumeID:   r.ID,
		ParsedData: models.ParsedData{Skills: parsedSkills},
	}))

	cat, err := LoadCatalog("")
	require.NoError(t, err)
	_, err = Seed(ctx, store, cat)
	require.NoError(t, err)

	ai := &fakeCompleter{content: aiContent}
	cfg := config.MatchingConfig{DefaultMode: "graph", GenerativeFallback: true, MaxResults: 20}
	return &fixture{
		store:  store,
		resume: r,
		ai:     ai,
		orch:   NewOrchestrator(store, NewGenerator(ai, 6, nil), cfg, nil),
	}
}

func TestFindMatchesGraph(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"Go", "PostgreSQL", "Docker", "REST", "Git", "Kafka"}, "")

	res, err := f.orch.FindMatches(ctx, f.resume.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, ModeGraph, res.Mode)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "Backend Engineer", res.Matches[0].Job.Title)
	assert.Equal(t, 85, res.Matches[0].MatchScore)
	assert.False(t, res.Matches[0].Details.AIGenerated)
	assert.Zero(t, f.ai.calls)

	again, err := f.orch.FindMatches(ctx, f.resume.ID, Options{})
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, res.Total, again.Total)
}

func TestFindMatchesForceClearsFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"Go", "Docker"}, "")

	stale, err := f.store.UpsertJob(ctx, &models.Job{Title: "Old Role", Company: "Gone Inc", Source: models.JobSourceAIGenerated})
	require.NoError(t, err)
	require.NoError(t, f.store.UpsertMatch(ctx, &models.JobMatch{ResumeID: f.resume.ID, JobID: stale.ID, MatchScore: 99}))

	res, err := f.orch.FindMatches(ctx, f.resume.ID, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Cleared)

	stored, err := f.store.ListMatches(ctx, f.resume.ID, 0)
	require.NoError(t, err)
	for _, m := range stored {
		assert.NotEqual(t, stale.ID, m.JobID)
	}
}

func TestFindMatchesFallsBackToGenerative(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"Underwater Basket Weaving"}, generatedJobs(6))

	res, err := f.orch.FindMatches(ctx, f.resume.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, ModeGenerative, res.Mode)
	require.Len(t, res.Matches, 6)
	assert.True(t, res.Matches[0].Details.AIGenerated)
	assert.Equal(t, 55, res.Matches[0].MatchScore)
	assert.Equal(t, models.JobSourceAIGenerated, res.Matches[0].Job.Source)
	require.NotNil(t, res.Matches[0].Job.SalaryMin)
	assert.Equal(t, 1000, *res.Matches[0].Job.SalaryMin)
	assert.Len(t, res.Top(3), 3)
}

func TestGenerativeDuplicatePostingsCollapse(t *testing.T) {
	ctx := context.Background()
	content := `{"jobs": [
		{"title": "Go Developer", "company": "Acme", "match_score": 80, "matching_skills": ["Go"]},
		{"title": "Go Developer", "company": "Acme", "match_score": 40, "matching_skills": ["Go"]},
		{"title": "Go Developer", "company": "Initech", "match_score": 60, "matching_skills": ["Go"]}
	]}`
	f := newFixture(t, []string{"Go"}, content)

	res, err := f.orch.FindMatches(ctx, f.resume.ID, Options{Mode: ModeGenerative})
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)

	scores := map[string]int{}
	for _, m := range res.Matches {
		scores[m.Job.Company] = m.MatchScore
	}
	assert.Equal(t, map[string]int{"Acme": 80, "Initech": 60}, scores)

	stored, err := f.store.ListMatches(ctx, f.resume.ID, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestUniqueGenerated(t *testing.T) {
	got := uniqueGenerated([]GeneratedJob{
		{Title: "A", Company: "X"},
		{Title: "A", Company: "Y"},
		{Title: "A", Company: "X", MatchScore: 10},
		{Title: "B", Company: "X"},
	})
	require.Len(t, got, 3)
	assert.Zero(t, got[0].MatchScore)
	assert.Equal(t, "B", got[2].Title)
}

func TestFindMatchesGenerativeRejectsBadList(t *testing.T) {
	f := newFixture(t, []string{"Go"}, `{"jobs": [{"company": "No Title"}]}`)

	_, err := f.orch.FindMatches(context.Background(), f.resume.ID, Options{Mode: ModeGenerative})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindAPI, ae.Kind)
	assert.Equal(t, InvalidJobListMessage, ae.UserMessage)
}

func TestFindMatchesWithoutSkills(t *testing.T) {
	f := newFixture(t, nil, "")
	_, err := f.orch.FindMatches(context.Background(), f.resume.ID, Options{})
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestGeneratorCapsCount(t *testing.T) {
	ai := &fakeCompleter{content: generatedJobs(9)}
	jobs, err := NewGenerator(ai, 20, nil).Generate(context.Background(), "x", []string{"Go"}, "")
	require.NoError(t, err)
	assert.Len(t, jobs, MaxGenerated)
}

func TestParseCatalog(t *testing.T) {
	_, err := ParseCatalog([]byte("jobs:\n  - title: Only Title\n"))
	require.Error(t, err)

	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.Jobs)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("", ModeGraph)
	require.NoError(t, err)
	assert.Equal(t, ModeGraph, m)

	_, err = ParseMode("vector", ModeGraph)
	assert.Error(t, err)
}
