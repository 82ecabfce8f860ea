// Package content holds the static portfolio catalogue rendered by the site.
package content

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Zachkp/portfolio/internal/apperr"
)

//go:embed catalogue.yaml
var defaultCatalogue []byte

// Project filter categories.
const (
	CategoryAll   = "all"
	CategoryWeb   = "web"
	CategoryAI    = "ai"
	CategoryTools = "tools"
)

type Catalogue struct {
	Profile        Profile         `yaml:"profile"`
	Socials        []Link          `yaml:"socials"`
	Sections       []Section       `yaml:"sections"`
	Skills         []SkillGroup    `yaml:"skills"`
	Projects       []Project       `yaml:"projects"`
	Experience     []Experience    `yaml:"experience"`
	Competitive    Competitive     `yaml:"competitive"`
	Certifications []Certification `yaml:"certifications"`
}

type Profile struct {
	Name      string      `yaml:"name"`
	Initials  string      `yaml:"initials"`
	Greeting  string      `yaml:"greeting"`
	Tagline   string      `yaml:"tagline"`
	Intro     string      `yaml:"intro"`
	Location  string      `yaml:"location"`
	Email     string      `yaml:"email"`
	Resume    string      `yaml:"resume"`
	About     []string    `yaml:"about"`
	Education []Education `yaml:"education"`
}

type Education struct {
	Title  string `yaml:"title"`
	Detail string `yaml:"detail,omitempty"`
}

type Link struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

// Section is a navigable block of the page; ID doubles as the anchor target.
type Section struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

type SkillGroup struct {
	Category string   `yaml:"category"`
	Items    []string `yaml:"items"`
}

type Project struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Featured    bool     `yaml:"featured,omitempty"`
	Category    string   `yaml:"category"`
	Tags        []string `yaml:"tags"`
	GitHub      string   `yaml:"github,omitempty"`
	Demo        string   `yaml:"demo,omitempty"`
	Features    []string `yaml:"features,omitempty"`
}

type Experience struct {
	Company          string   `yaml:"company"`
	Position         string   `yaml:"position"`
	Duration         string   `yaml:"duration"`
	URL              string   `yaml:"url,omitempty"`
	Responsibilities []string `yaml:"responsibilities"`
}

type Competitive struct {
	Platforms    []Platform `yaml:"platforms"`
	Competitions []string   `yaml:"competitions"`
}

type Platform struct {
	Name         string   `yaml:"name"`
	Rating       string   `yaml:"rating"`
	URL          string   `yaml:"url"`
	Achievements []string `yaml:"achievements"`
}

type Certification struct {
	Name   string `yaml:"name"`
	Issuer string `yaml:"issuer"`
	Date   string `yaml:"date"`
	URL    string `yaml:"url,omitempty"`
}

// Default returns the embedded catalogue.
func Default() (*Catalogue, error) {
	return Parse(defaultCatalogue)
}

// LoadFile reads a catalogue from a YAML file.
func LoadFile(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalogue %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalogue.
func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalogue: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that sections are present with unique, non-empty IDs.
func (c *Catalogue) Validate() error {
	if len(c.Sections) == 0 {
		return fmt.Errorf("catalogue has no sections: %w", apperr.ErrInvalidInput)
	}
	seen := make(map[string]bool, len(c.Sections))
	for i, s := range c.Sections {
		if s.ID == "" {
			return fmt.Errorf("section %d has no id: %w", i, apperr.ErrInvalidInput)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate section %q: %w", s.ID, apperr.ErrInvalidInput)
		}
		seen[s.ID] = true
	}
	return nil
}

// SectionIDs returns the section anchors in navigation order.
func (c *Catalogue) SectionIDs() []string {
	ids := make([]string, len(c.Sections))
	for i, s := range c.Sections {
		ids[i] = s.ID
	}
	return ids
}

// HasSection reports whether id is a known section anchor.
func (c *Catalogue) HasSection(id string) bool {
	for _, s := range c.Sections {
		if s.ID == id {
			return true
		}
	}
	return false
}

// FeaturedProjects returns the projects shown with full detail.
func (c *Catalogue) FeaturedProjects() []Project {
	var out []Project
	for _, p := range c.Projects {
		if p.Featured {
			out = append(out, p)
		}
	}
	return out
}

// ProjectsByCategory returns the non-featured projects in category.
// An empty filter or CategoryAll returns all of them.
func (c *Catalogue) ProjectsByCategory(filter string) []Project {
	var out []Project
	for _, p := range c.Projects {
		if p.Featured {
			continue
		}
		if filter == "" || filter == CategoryAll || p.Category == filter {
			out = append(out, p)
		}
	}
	return out
}

// ExperienceAt returns the i-th experience entry.
func (c *Catalogue) ExperienceAt(i int) (Experience, error) {
	if i < 0 || i >= len(c.Experience) {
		return Experience{}, fmt.Errorf("experience %d: %w", i, apperr.ErrNotFound)
	}
	return c.Experience[i], nil
}

// Encode renders the catalogue back to YAML.
func (c *Catalogue) Encode() ([]byte, error) {
	return yaml.Marshal(c)
}
