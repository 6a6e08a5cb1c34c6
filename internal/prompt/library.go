package prompt

import "fmt"

// Template is a system + user prompt pair with {{variable}} placeholders.
type Template struct {
	Name   string
	System string
	User   string
}

const (
	ResumeAnalysis = "resume-analysis"
	JobGeneration  = "job-generation"
)

var library = map[string]Template{
	ResumeAnalysis: {
		Name: ResumeAnalysis,
		System: `You are an experienced technical recruiter and resume reviewer.
Analyse the resume you are given and respond with a single JSON object using exactly this shape:
{
  "overall_score": integer 0-100,
  "skills": {"technical": [string], "soft": [string], "tools": [string]},
  "experience_summary": string,
  "education_summary": string,
  "strengths": [string],
  "improvement_areas": [string],
  "ats_compatibility": {"score": integer 0-100, "issues": [string], "recommendations": [string]},
  "keywords": [string]
}
Only list skills the resume actually demonstrates. Do not add commentary outside the JSON.`,
		User: `Resume text:
"""
{{resume_text}}
"""`,
	},
	JobGeneration: {
		Name: JobGeneration,
		System: `You are a job market assistant. Suggest {{count}} realistic, currently plausible job postings for the candidate described.
Respond with a single JSON object: {"jobs": [ ... ]} where each job has
"title", "company", "location", "job_types" (array), "description", "requirements" (array),
"salary_min" and "salary_max" (integers, yearly USD, optional),
"match_score" (integer 0-100, how well the candidate fits),
"matching_skills" (candidate skills the job needs) and "missing_skills" (skills the job needs that the candidate lacks).`,
		User: `Candidate skills: {{skills}}

Experience summary: {{experience_summary}}`,
	},
}

// Build renders the named template with vars.
func Build(name string, vars map[string]string) (system, user string, err error) {
	t, ok := library[name]
	if !ok {
		return "", "", fmt.Errorf("unknown prompt %q", name)
	}
	if system, err = Render(t.System, vars); err != nil {
		return "", "", fmt.Errorf("render %s system prompt: %w", name, err)
	}
	if user, err = Render(t.User, vars); err != nil {
		return "", "", fmt.Errorf("render %s user prompt: %w", name, err)
	}
	return system, user, nil
}
