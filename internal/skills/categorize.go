package skills

import (
	"strings"

	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/parser"
)

type categoryRule struct {
	category models.SkillCategory
	keywords []string
}

// Checked in order; the first rule with a matching keyword wins.
var categoryRules = []categoryRule{
	{models.SkillCertification, []string{"certified", "certification", "certificate", "pmp", "cissp", "ccna"}},
	{models.SkillTechnical, []string{"programming", "framework", "database", "cloud", "devops", "development", "engineering", "api"}},
	{models.SkillSoft, []string{"communication", "leadership", "teamwork", "collaboration", "mentoring", "problem solving", "management", "negotiation", "presentation"}},
	{models.SkillTool, []string{"software", "tool", "platform", "suite", "studio"}},
}

var spokenLanguages = map[string]bool{
	"english": true, "spanish": true, "french": true, "german": true, "mandarin": true,
	"chinese": true, "japanese": true, "korean": true, "portuguese": true, "italian": true,
	"arabic": true, "hindi": true, "russian": true, "dutch": true, "polish": true,
}

// Categorize assigns a category to a skill name that arrived without one.
func Categorize(name string) models.SkillCategory {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return models.SkillOther
	}
	for _, r := range categoryRules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.category
			}
		}
	}
	if spokenLanguages[strings.Fields(lower)[0]] {
		return models.SkillLanguage
	}
	if parser.IsKnownSkill(name) {
		return models.SkillTechnical
	}
	return models.SkillOther
}
