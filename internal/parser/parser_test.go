package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResume = `Jane Doe
jane.doe@example.com | +1 (555) 123-4567
linkedin.com/in/janedoe | https://janedoe.dev

SUMMARY
Backend engineer with experience building payment platforms.

Work Experience
Senior Engineer, Acme Corp (2019 - 2024)
Built services in Go and PostgreSQL on Kubernetes.
Experience leading a team of five engineers across three time zones.

Education
B.Sc. Computer Science, State University

Skills: Go, Python, Docker, Redis, Leadership

Projects
Open source rate limiter used by other teams.`

func TestParseSections(t *testing.T) {
	res := Parse(sampleResume)
	s := res.Data.Sections

	require.Contains(t, s, SectionSummary)
	require.Contains(t, s, SectionExperience)
	require.Contains(t, s, SectionEducation)
	require.Contains(t, s, SectionSkills)
	require.Contains(t, s, SectionProjects)

	assert.Equal(t, "Backend engineer with experience building payment platforms.", s[SectionSummary])
	assert.Contains(t, s[SectionExperience], "Experience leading a team", "a sentence starting with a keyword stays content")
	assert.Equal(t, "Go, Python, Docker, Redis, Leadership", s[SectionSkills])
	assert.NotContains(t, s, SectionContact)
}

func TestParseContact(t *testing.T) {
	c := Parse(sampleResume).Data.Contact

	assert.Equal(t, "Jane Doe", c.Name)
	assert.Equal(t, "jane.doe@example.com", c.Email)
	assert.Equal(t, "+1 (555) 123-4567", c.Phone)
	assert.Equal(t, "linkedin.com/in/janedoe", c.LinkedIn)
	assert.Equal(t, "https://janedoe.dev", c.Website)
}

func TestParseSkillsFromSkillsSection(t *testing.T) {
	res := Parse(sampleResume)
	assert.Equal(t, []string{"Go", "Python", "Docker", "Redis", "Leadership"}, res.Data.Skills)
}

func TestParseSkillsFallsBackToWholeText(t *testing.T) {
	text := "Jane Doe\nBuilt APIs with Node.js, TypeScript and MongoDB. Deployed on AWS with Terraform."
	res := Parse(text)
	assert.Equal(t, []string{"Node.js", "TypeScript", "MongoDB", "AWS", "Terraform"}, res.Data.Skills)
}

func TestMatchHeader(t *testing.T) {
	tests := []struct {
		line     string
		want     string
		wantRest string
		ok       bool
	}{
		{line: "EDUCATION", want: SectionEducation, ok: true},
		{line: "## Work Experience", want: SectionExperience, ok: true},
		{line: "Technical Skills:", want: SectionSkills, ok: true},
		{line: "Skills: Go, SQL", want: SectionSkills, wantRest: "Go, SQL", ok: true},
		{line: "Certifications", want: SectionCertifications, ok: true},
		{line: "Contact Information", want: SectionContact, ok: true},
		{line: "Professional Summary", want: SectionSummary, ok: true},
		{line: "Experienced engineer", ok: false},
		{line: "Education matters to me a lot", ok: false},
		{line: "Skills: " + strings.Repeat("Go, ", 30), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, rest, ok := matchHeader(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, name)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestExtractSkillsWholeWord(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{text: "Fluent in C++ and C#", want: []string{"C++", "C#"}},
		{text: "javascript, typescript", want: []string{"JavaScript", "TypeScript"}},
		{text: "Javanese cuisine", want: []string{}},
		{text: "we go to the rest of the meeting", want: []string{}},
		{text: "Wrote Go services", want: []string{"Go"}},
		{text: "mysql and postgresql", want: []string{"MySQL", "PostgreSQL"}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSkills(tt.text))
		})
	}
}

func TestGuessNameSkipsContactLines(t *testing.T) {
	text := "jane@example.com\n555 123 4567\nRESUME\nJane Q. Doe\nEngineer"
	assert.Equal(t, "Jane Q. Doe", Parse(text).Data.Contact.Name)

	long := strings.Repeat("x", 70) + "\nJohn Smith"
	assert.Equal(t, "John Smith", Parse(long).Data.Contact.Name)
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 0.0, Parse("").Confidence)

	full := Parse(sampleResume).Confidence
	sparse := Parse("just some words").Confidence
	assert.Greater(t, full, sparse)
	assert.LessOrEqual(t, full, 1.0)
}
