package tagging

import (
	"fmt"

	"github.com/tmnance/insightarium/internal/models"
	pkgconfig "github.com/tmnance/insightarium/pkg/config"
)

// Catalog is the YAML shape of an external catalog file.
type Catalog struct {
	Tags []models.TagDefinition `yaml:"tags"`
}

// Validate checks every definition and rejects duplicate slugs.
func (c *Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c.Tags))
	for i, def := range c.Tags {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("tag %d (%s): %w", i, def.Slug, err)
		}
		if _, dup := seen[def.Slug]; dup {
			return fmt.Errorf("duplicate tag slug %q", def.Slug)
		}
		seen[def.Slug] = struct{}{}
	}
	return nil
}

// LoadCatalog reads a catalog from a YAML file. An empty path returns the
// built-in default catalog.
func LoadCatalog(path string) ([]models.TagDefinition, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	var c Catalog
	if err := pkgconfig.Load(path, &c); err != nil {
		return nil, err
	}
	return c.Tags, nil
}

// DefaultCatalog returns the topic definitions shipped with the binary.
// The AI entry keeps a deliberately tight keyword list: the short-content
// length penalty means broad lists dilute the keyword ratio below the
// confidence floor for typical social post lengths.
func DefaultCatalog() []models.TagDefinition {
	return []models.TagDefinition{
		{
			Name:        "AI & Machine Learning",
			Slug:        "ai-ml",
			Description: "Machine learning, neural networks, and applied AI",
			Color:       "#8b5cf6",
			Keywords:    []string{"machine learning", "neural network"},
		},
		{
			Name:        "Coding",
			Slug:        "coding",
			Description: "Programming practice and software engineering",
			Color:       "#3b82f6",
			Keywords:    []string{"programming", "software engineering", "open source", "code review", "refactoring", "debugging"},
		},
		{
			Name:        "Web Development",
			Slug:        "web-dev",
			Description: "Frontend and backend web development",
			Color:       "#f59e0b",
			Keywords:    []string{"javascript", "typescript", "react", "frontend", "web development", "css"},
		},
		{
			Name:        "DevOps",
			Slug:        "devops",
			Description: "Infrastructure, deployment, and operations",
			Color:       "#10b981",
			Keywords:    []string{"kubernetes", "docker", "terraform", "observability", "deployment pipeline"},
		},
		{
			Name:        "Security",
			Slug:        "security",
			Description: "Application and infrastructure security",
			Color:       "#ef4444",
			Keywords:    []string{"vulnerability", "encryption", "zero day", "penetration testing", "security audit"},
		},
		{
			Name:        "Startups",
			Slug:        "startups",
			Description: "Founding, funding, and growing companies",
			Color:       "#ec4899",
			Keywords:    []string{"startup", "venture capital", "product market fit", "founder", "fundraising"},
		},
		{
			Name:        "Productivity",
			Slug:        "productivity",
			Description: "Personal workflows and knowledge management",
			Color:       "#14b8a6",
			Keywords:    []string{"productivity", "time management", "note taking", "knowledge management"},
		},
		{
			Name:        "Crypto",
			Slug:        "crypto",
			Description: "Cryptocurrencies and blockchain systems",
			Color:       "#f97316",
			Keywords:    []string{"bitcoin", "ethereum", "blockchain", "smart contract"},
		},
		{
			Name:        "Design",
			Slug:        "design",
			Description: "Product and visual design",
			Color:       "#6366f1",
			Keywords:    []string{"user experience", "ui design", "typography", "design system"},
		},
	}
}
