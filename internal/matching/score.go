package matching

import (
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/resumeflow/internal/models"
)

const (
	RequiredWeight = 70
	OptionalWeight = 30
)

// Score weighs required skills at 70 points and optional skills at 30. A job
// with no required skills earns the full required share; a job with no
// optional skills earns none of the optional share.
func Score(matchedRequired, totalRequired, matchedOptional, totalOptional int) int {
	required := float64(RequiredWeight)
	if totalRequired > 0 {
		required = float64(matchedRequired) / float64(totalRequired) * RequiredWeight
	}
	optional := 0.0
	if totalOptional > 0 {
		optional = float64(matchedOptional) / float64(totalOptional) * OptionalWeight
	}
	return int(math.Round(required + optional))
}

// SkillSet is the resume side of a graph match, keyed by skill id with a
// case-insensitive name fallback.
type SkillSet struct {
	ids   map[uuid.UUID]bool
	names map[string]bool
}

func NewSkillSet(skills []models.Skill, extraNames ...string) SkillSet {
	s := SkillSet{ids: make(map[uuid.UUID]bool), names: make(map[string]bool)}
	for _, sk := range skills {
		if sk.ID != uuid.Nil {
			s.ids[sk.ID] = true
		}
		s.names[strings.ToLower(sk.Name)] = true
	}
	for _, n := range extraNames {
		if n = strings.TrimSpace(n); n != "" {
			s.names[strings.ToLower(n)] = true
		}
	}
	return s
}

func (s SkillSet) Len() int { return len(s.names) }

// Names returns the skill names in the set, sorted.
func (s SkillSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s SkillSet) has(js models.JobSkill) bool {
	return s.ids[js.SkillID] || s.names[strings.ToLower(js.SkillName)]
}

// Scored is one graph-match candidate.
type Scored struct {
	Job            models.Job
	Score          int
	MatchingSkills []string
	MissingSkills  []string
}

// ScoreJobs scores the catalogue against the resume, best first. A job with
// required skills is dropped when the resume shares none of its skills; a
// job without required skills always gets the full required share. Missing
// skills are the required skills the resume lacks.
func ScoreJobs(resume SkillSet, jobs []models.JobWithSkills) []Scored {
	var out []Scored
	for _, j := range jobs {
		var (
			mr, tr, mo, to int
			matching       = []string{}
			missing        = []string{}
		)
		for _, js := range j.Skills {
			hit := resume.has(js)
			if js.Required {
				tr++
			} else {
				to++
			}
			switch {
			case hit && js.Required:
				mr++
				matching = append(matching, js.SkillName)
			case hit:
				mo++
				matching = append(matching, js.SkillName)
			case js.Required:
				missing = append(missing, js.SkillName)
			}
		}
		if tr > 0 && mr+mo == 0 {
			continue
		}
		out = append(out, Scored{
			Job:            j.Job,
			Score:          Score(mr, tr, mo, to),
			MatchingSkills: matching,
			MissingSkills:  missing,
		})
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].Score > out[k].Score })
	return out
}
