// Package parser splits resume text into sections and pulls out contact
// details and a baseline skill list with regular expressions.
package parser

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nikhilbhutani/resumeflow/internal/models"
)

const (
	maxHeaderChars = 100
	maxNameChars   = 60
)

const (
	SectionSummary        = "summary"
	SectionExperience     = "experience"
	SectionEducation      = "education"
	SectionSkills         = "skills"
	SectionProjects       = "projects"
	SectionCertifications = "certifications"
	SectionContact        = "contact"
)

type sectionPattern struct {
	name string
	re   *regexp.Regexp
}

func header(name, alternatives string) sectionPattern {
	return sectionPattern{
		name: name,
		re:   regexp.MustCompile(`(?i)^[\s#*•\-=_|>]*(?:` + alternatives + `)\b\s*(:)?\s*(.*)$`),
	}
}

var sectionPatterns = []sectionPattern{
	header(SectionSummary, `professional\s+summary|career\s+summary|summary|profile|career\s+objective|objective|about\s+me`),
	header(SectionExperience, `work\s+experience|professional\s+experience|relevant\s+experience|experience|employment\s+history|employment|work\s+history|career\s+history`),
	header(SectionEducation, `education(?:al\s+background)?|academic\s+background|academics|qualifications`),
	header(SectionSkills, `technical\s+skills|core\s+skills|key\s+skills|skills|core\s+competencies|competencies|technologies|tech\s+stack`),
	header(SectionProjects, `personal\s+projects|key\s+projects|projects|portfolio`),
	header(SectionCertifications, `certifications?|certificates|licenses?(?:\s+(?:&|and)\s+certifications?)?`),
	header(SectionContact, `contact\s+information|contact\s+details|contact|personal\s+details`),
}

var (
	reEmail    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	rePhone    = regexp.MustCompile(`(?:\+?\d{1,3}[\s.\-]?)?(?:\(\d{2,4}\)|\d{2,4})[\s.\-]?\d{3,4}[\s.\-]?\d{3,4}`)
	reLinkedIn = regexp.MustCompile(`(?i)(?:https?://)?(?:[a-z]{2,3}\.)?linkedin\.com/(?:in|pub)/[A-Za-z0-9_\-%]+/?`)
	reDocTitle = regexp.MustCompile(`(?i)^(?:resume|résumé|curriculum\s+vitae|cv)$`)
	reWebsite  = regexp.MustCompile(`(?i)(?:https?://[^\s,;]+|www\.[^\s,;]+|\b[a-z0-9][a-z0-9\-]*\.(?:dev|io|me|com|net|org|app|tech)(?:/[^\s,;]*)?)`)
)

type skillMatcher struct {
	name string
	re   *regexp.Regexp
}

var skillMatchers = buildSkillMatchers()

func buildSkillMatchers() []skillMatcher {
	out := make([]skillMatcher, 0, len(skillKeywords))
	for _, k := range skillKeywords {
		flags := "(?i)"
		if k.exact {
			flags = ""
		}
		re := regexp.MustCompile(flags + `(?:^|[^A-Za-z0-9+#.])` + regexp.QuoteMeta(k.name) + `(?:$|[^A-Za-z0-9+#])`)
		out = append(out, skillMatcher{name: k.name, re: re})
	}
	return out
}

type Result struct {
	Data       models.ParsedData
	Confidence float64
}

// Parse builds the structured view of raw resume text.
func Parse(text string) Result {
	sections, preamble := splitSections(text)

	zone := preamble
	if c := sections[SectionContact]; c != "" {
		zone += "\n" + c
	}
	data := models.ParsedData{
		Sections: sections,
		Contact:  extractContact(text, zone),
	}

	scope := sections[SectionSkills]
	if strings.TrimSpace(scope) == "" {
		scope = text
	}
	data.Skills = ExtractSkills(scope)

	return Result{Data: data, Confidence: confidence(text, data)}
}

// matchHeader returns the section name and any inline content when line is
// a section header. A keyword followed by prose without a colon is content.
func matchHeader(line string) (string, string, bool) {
	if utf8.RuneCountInString(line) >= maxHeaderChars {
		return "", "", false
	}
	for _, p := range sectionPatterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rest := strings.Trim(m[2], " \t-–—=_*#|")
		if rest == "" || m[1] == ":" {
			return p.name, rest, true
		}
	}
	return "", "", false
}

// splitSections buckets lines under the most recent header. Lines before
// the first header are returned separately as the preamble.
func splitSections(text string) (map[string]string, string) {
	buffers := make(map[string]*strings.Builder)
	var preamble strings.Builder
	current := ""

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if name, rest, ok := matchHeader(line); ok {
			current = name
			if _, exists := buffers[current]; !exists {
				buffers[current] = &strings.Builder{}
			}
			if rest != "" {
				appendLine(buffers[current], rest)
			}
			continue
		}
		if current == "" {
			appendLine(&preamble, line)
			continue
		}
		appendLine(buffers[current], line)
	}

	out := make(map[string]string, len(buffers))
	for name, b := range buffers {
		out[name] = b.String()
	}
	return out, preamble.String()
}

func appendLine(b *strings.Builder, line string) {
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(line)
}

// extractContact searches the whole text for email, phone and LinkedIn, and
// only the contact zone for a personal website.
func extractContact(text, zone string) models.ContactInfo {
	var c models.ContactInfo

	c.Email = reEmail.FindString(text)
	c.LinkedIn = reLinkedIn.FindString(text)

	for _, m := range rePhone.FindAllString(text, -1) {
		if n := countDigits(m); n >= 7 && n <= 15 {
			c.Phone = strings.TrimSpace(m)
			break
		}
	}

	withoutEmails := reEmail.ReplaceAllString(zone, " ")
	for _, m := range reWebsite.FindAllString(withoutEmails, -1) {
		if strings.Contains(strings.ToLower(m), "linkedin.com") {
			continue
		}
		c.Website = strings.TrimRight(m, ".)")
		break
	}

	c.Name = guessName(text)
	return c
}

// guessName takes the first short non-empty line that is neither a section
// header nor a line of contact details.
func guessName(text string) string {
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) >= maxNameChars {
			continue
		}
		if _, _, ok := matchHeader(line); ok || reDocTitle.MatchString(line) {
			continue
		}
		if strings.ContainsAny(line, "@/") || countDigits(line) > 0 {
			continue
		}
		if !hasLetters(line, 2) {
			continue
		}
		return line
	}
	return ""
}

// ExtractSkills returns the baseline keywords present in text, in order of
// first appearance.
func ExtractSkills(text string) []string {
	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for _, m := range skillMatchers {
		if loc := m.re.FindStringIndex(text); loc != nil {
			hits = append(hits, hit{name: m.name, pos: loc[0]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	skills := make([]string, 0, len(hits))
	for _, h := range hits {
		skills = append(skills, h.name)
	}
	return skills
}

func confidence(text string, d models.ParsedData) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	score := 0.1
	score += math.Min(float64(len(d.Sections))*0.1, 0.4)
	if d.Contact.Email != "" {
		score += 0.15
	}
	if d.Contact.Phone != "" {
		score += 0.1
	}
	if d.Contact.Name != "" {
		score += 0.05
	}
	switch {
	case len(d.Skills) >= 3:
		score += 0.2
	case len(d.Skills) > 0:
		score += 0.1
	}
	return math.Round(math.Min(score, 1)*100) / 100
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func hasLetters(s string, min int) bool {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
			if n >= min {
				return true
			}
		}
	}
	return false
}
