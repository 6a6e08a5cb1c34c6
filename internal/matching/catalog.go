package matching

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/repository"
	"github.com/nikhilbhutani/resumeflow/internal/skills"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type CatalogJob struct {
	Title          string   `yaml:"title"`
	Company        string   `yaml:"company"`
	Location       string   `yaml:"location"`
	JobTypes       []string `yaml:"job_types"`
	Description    string   `yaml:"description"`
	Requirements   []string `yaml:"requirements"`
	SalaryMin      *int     `yaml:"salary_min"`
	SalaryMax      *int     `yaml:"salary_max"`
	URL            string   `yaml:"url"`
	RequiredSkills []string `yaml:"required_skills"`
	OptionalSkills []string `yaml:"optional_skills"`
}

type Catalog struct {
	Jobs []CatalogJob `yaml:"jobs"`
}

// ParseCatalog decodes a YAML catalogue and checks every job has a title and
// company.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i, j := range c.Jobs {
		if j.Title == "" || j.Company == "" {
			return nil, fmt.Errorf("catalog job %d: title and company are required", i)
		}
	}
	return &c, nil
}

// LoadCatalog reads the catalogue at path, or the built-in one when path is
// empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

type catalogStore interface {
	repository.SkillRepository
	repository.JobRepository
}

// Seed upserts every catalogue job and replaces its skill edges. Running it
// again is a no-op apart from refreshed job fields.
func Seed(ctx context.Context, store catalogStore, c *Catalog) (int, error) {
	for _, cj := range c.Jobs {
		job, err := store.UpsertJob(ctx, &models.Job{
			Title:        cj.Title,
			Company:      cj.Company,
			Location:     cj.Location,
			JobTypes:     cj.JobTypes,
			Description:  cj.Description,
			Requirements: cj.Requirements,
			SalaryMin:    cj.SalaryMin,
			SalaryMax:    cj.SalaryMax,
			URL:          cj.URL,
			Source:       models.JobSourceCatalog,
		})
		if err != nil {
			return 0, fmt.Errorf("seed job %q: %w", cj.Title, err)
		}

		var edges []models.JobSkill
		seen := make(map[string]bool)
		addEdges := func(names []string, required bool) error {
			for _, name := range names {
				sk, err := store.CreateSkill(ctx, &models.Skill{Name: name, Category: skills.Categorize(name)})
				if err != nil {
					return fmt.Errorf("seed skill %q: %w", name, err)
				}
				if seen[sk.ID.String()] {
					continue
				}
				seen[sk.ID.String()] = true
				edges = append(edges, models.JobSkill{JobID: job.ID, SkillID: sk.ID, SkillName: sk.Name, Required: required})
			}
			return nil
		}
		if err := addEdges(cj.RequiredSkills, true); err != nil {
			return 0, err
		}
		if err := addEdges(cj.OptionalSkills, false); err != nil {
			return 0, err
		}
		if err := store.SetJobSkills(ctx, job.ID, edges); err != nil {
			return 0, fmt.Errorf("seed skills for %q: %w", cj.Title, err)
		}
	}
	return len(c.Jobs), nil
}
