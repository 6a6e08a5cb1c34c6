// Package memory is an in-process repository.Store used by tests and by the
// API when no database is configured.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/repository"
)

type jobKey struct{ title, company string }
type matchKey struct{ resumeID, jobID uuid.UUID }

type Store struct {
	mu sync.RWMutex

	resumes      map[uuid.UUID]models.Resume
	documents    map[uuid.UUID]models.ParsedDocument
	analyses     map[uuid.UUID][]models.Analysis
	skills       map[uuid.UUID]models.Skill
	skillsByName map[string]uuid.UUID
	resumeSkills map[uuid.UUID]map[uuid.UUID]models.ResumeSkill
	jobs         map[uuid.UUID]models.Job
	jobsByKey    map[jobKey]uuid.UUID
	jobSkills    map[uuid.UUID][]models.JobSkill
	matches      map[matchKey]models.JobMatch

	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		resumes:      make(map[uuid.UUID]models.Resume),
		documents:    make(map[uuid.UUID]models.ParsedDocument),
		analyses:     make(map[uuid.UUID][]models.Analysis),
		skills:       make(map[uuid.UUID]models.Skill),
		skillsByName: make(map[string]uuid.UUID),
		resumeSkills: make(map[uuid.UUID]map[uuid.UUID]models.ResumeSkill),
		jobs:         make(map[uuid.UUID]models.Job),
		jobsByKey:    make(map[jobKey]uuid.UUID),
		jobSkills:    make(map[uuid.UUID][]models.JobSkill),
		matches:      make(map[matchKey]models.JobMatch),
		now:          time.Now,
	}
}

func (s *Store) CreateResume(_ context.Context, r *models.Resume) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if _, exists := s.resumes[r.ID]; exists {
		return repository.ErrConflict
	}
	now := s.now().UTC()
	if r.Status == "" {
		r.Status = models.StatusUploaded
	}
	r.Version = 1
	r.CreatedAt = now
	r.UpdatedAt = now
	s.resumes[r.ID] = *r
	return nil
}

func (s *Store) GetResume(_ context.Context, id uuid.UUID) (*models.Resume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.resumes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *Store) UpdateStatus(_ context.Context, upd repository.StatusUpdate) (*models.Resume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resumes[upd.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if r.Version != upd.ExpectedVersion {
		return nil, repository.ErrStaleVersion
	}

	r.Status = upd.Status
	r.ProcessingError = upd.ProcessingError
	r.ProcessingErrorCode = upd.ErrorCode
	r.ProcessingRecovery = upd.ErrorRecovery
	if upd.LastProcessedAt != nil {
		r.LastProcessedAt = upd.LastProcessedAt
	}
	if upd.LastAnalyzedAt != nil {
		r.LastAnalyzedAt = upd.LastAnalyzedAt
	}
	if upd.CompletedAt != nil {
		r.ProcessingCompletedAt = upd.CompletedAt
	}
	r.Version++
	r.UpdatedAt = s.now().UTC()
	s.resumes[r.ID] = r
	return &r, nil
}

func (s *Store) RecordError(_ context.Context, id uuid.UUID, msg, code, recovery string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resumes[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.ProcessingError = &msg
	r.ProcessingErrorCode = code
	r.ProcessingRecovery = recovery
	r.UpdatedAt = s.now().UTC()
	s.resumes[id] = r
	return nil
}

func (s *Store) ReplaceParsedDocument(_ context.Context, doc *models.ParsedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resumes[doc.ResumeID]; !ok {
		return repository.ErrNotFound
	}
	doc.ID = uuid.New()
	if doc.ProcessedAt.IsZero() {
		doc.ProcessedAt = s.now().UTC()
	}
	s.documents[doc.ResumeID] = *doc
	return nil
}

func (s *Store) GetParsedDocument(_ context.Context, resumeID uuid.UUID) (*models.ParsedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[resumeID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (s *Store) InsertAnalysis(_ context.Context, a *models.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resumes[a.ResumeID]; !ok {
		return repository.ErrNotFound
	}
	a.ID = uuid.New()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	s.analyses[a.ResumeID] = append(s.analyses[a.ResumeID], *a)
	return nil
}

func (s *Store) LatestAnalysis(_ context.Context, resumeID uuid.UUID) (*models.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.analyses[resumeID]
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	latest := rows[0]
	for _, a := range rows[1:] {
		if !a.CreatedAt.Before(latest.CreatedAt) {
			latest = a
		}
	}
	return &latest, nil
}

// AnalysisCount returns how many analyses exist for a resume.
func (s *Store) AnalysisCount(resumeID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.analyses[resumeID])
}

func (s *Store) FindSkillByName(_ context.Context, name string) (*models.Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.skillsByName[normalize(name)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	sk := s.skills[id]
	return &sk, nil
}

func (s *Store) CreateSkill(_ context.Context, sk *models.Skill) (*models.Skill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalize(sk.Name)
	if id, ok := s.skillsByName[key]; ok {
		existing := s.skills[id]
		return &existing, nil
	}
	created := *sk
	created.ID = uuid.New()
	created.CreatedAt = s.now().UTC()
	s.skills[created.ID] = created
	s.skillsByName[key] = created.ID
	return &created, nil
}

func (s *Store) LinkResumeSkill(_ context.Context, link models.ResumeSkill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.skills[link.SkillID]; !ok {
		return repository.ErrNotFound
	}
	links := s.resumeSkills[link.ResumeID]
	if links == nil {
		links = make(map[uuid.UUID]models.ResumeSkill)
		s.resumeSkills[link.ResumeID] = links
	}
	if link.Level == "" {
		link.Level = models.LevelIntermediate
	}
	links[link.SkillID] = link
	return nil
}

func (s *Store) ListResumeSkills(_ context.Context, resumeID uuid.UUID) ([]models.Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Skill
	for id := range s.resumeSkills[resumeID] {
		out = append(out, s.skills[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpsertJob(_ context.Context, j *models.Job) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := jobKey{title: j.Title, company: j.Company}
	stored := *j
	if id, ok := s.jobsByKey[key]; ok {
		stored.ID = id
		stored.CreatedAt = s.jobs[id].CreatedAt
	} else {
		stored.ID = uuid.New()
		stored.CreatedAt = s.now().UTC()
		s.jobsByKey[key] = stored.ID
	}
	s.jobs[stored.ID] = stored
	return &stored, nil
}

func (s *Store) SetJobSkills(_ context.Context, jobID uuid.UUID, edges []models.JobSkill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return repository.ErrNotFound
	}
	out := make([]models.JobSkill, 0, len(edges))
	for _, e := range edges {
		sk, ok := s.skills[e.SkillID]
		if !ok {
			return repository.ErrNotFound
		}
		e.JobID = jobID
		e.SkillName = sk.Name
		out = append(out, e)
	}
	s.jobSkills[jobID] = out
	return nil
}

func (s *Store) ListJobsWithSkills(_ context.Context) ([]models.JobWithSkills, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.JobWithSkills, 0, len(s.jobs))
	for id, j := range s.jobs {
		if j.Source == models.JobSourceAIGenerated {
			continue
		}
		out = append(out, models.JobWithSkills{
			Job:    j,
			Skills: append([]models.JobSkill(nil), s.jobSkills[id]...),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Job.Title != out[j].Job.Title {
			return out[i].Job.Title < out[j].Job.Title
		}
		return out[i].Job.ID.String() < out[j].Job.ID.String()
	})
	return out, nil
}

func (s *Store) UpsertMatch(_ context.Context, m *models.JobMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[m.JobID]; !ok {
		return repository.ErrNotFound
	}
	key := matchKey{resumeID: m.ResumeID, jobID: m.JobID}
	if existing, ok := s.matches[key]; ok {
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
	} else {
		m.ID = uuid.New()
		m.CreatedAt = s.now().UTC()
	}
	stored := *m
	stored.Job = nil
	s.matches[key] = stored
	return nil
}

func (s *Store) DeleteMatches(_ context.Context, resumeID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteMatchesLocked(resumeID), nil
}

func (s *Store) deleteMatchesLocked(resumeID uuid.UUID) int64 {
	var n int64
	for k := range s.matches {
		if k.resumeID == resumeID {
			delete(s.matches, k)
			n++
		}
	}
	return n
}

func (s *Store) ListMatches(_ context.Context, resumeID uuid.UUID, limit int) ([]models.JobMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.JobMatch
	for k, m := range s.matches {
		if k.resumeID != resumeID {
			continue
		}
		job := s.jobs[m.JobID]
		m.Job = &job
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MatchScore != out[j].MatchScore {
			return out[i].MatchScore > out[j].MatchScore
		}
		return out[i].Job.Title < out[j].Job.Title
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ClearDerived(_ context.Context, resumeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, resumeID)
	delete(s.analyses, resumeID)
	delete(s.resumeSkills, resumeID)
	s.deleteMatchesLocked(resumeID)
	return nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
