package content

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Zachkp/portfolio/internal/apperr"
)

func TestDefaultCatalogue(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"home", "about", "projects", "experience", "contact"}
	got := c.SectionIDs()
	if len(got) != len(want) {
		t.Fatalf("sections = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sections = %v, want %v", got, want)
		}
	}

	if n := len(c.FeaturedProjects()); n != 3 {
		t.Errorf("featured projects = %d, want 3", n)
	}
	if n := len(c.Experience); n != 3 {
		t.Errorf("experience entries = %d, want 3", n)
	}
	if !c.HasSection("contact") || c.HasSection("blog") {
		t.Error("HasSection mismatch")
	}
}

func TestProjectsByCategory(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		filter string
		want   int
	}{
		{"", 6},
		{CategoryAll, 6},
		{CategoryWeb, 4},
		{CategoryAI, 1},
		{CategoryTools, 1},
		{"games", 0},
	}
	for _, tt := range tests {
		if got := len(c.ProjectsByCategory(tt.filter)); got != tt.want {
			t.Errorf("ProjectsByCategory(%q) = %d, want %d", tt.filter, got, tt.want)
		}
	}
}

func TestExperienceAt(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	e, err := c.ExperienceAt(1)
	if err != nil {
		t.Fatal(err)
	}
	if e.Position != "Head of Aerodynamics" {
		t.Errorf("position = %q", e.Position)
	}
	if _, err := c.ExperienceAt(9); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestParseRejectsBadSections(t *testing.T) {
	tests := map[string]string{
		"no sections": "profile:\n  name: x\n",
		"empty id":    "sections:\n  - id: ''\n",
		"duplicate":   "sections:\n  - id: home\n  - id: home\n",
		"bad yaml":    "sections: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadFileRoundTrip(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	c.Profile.Name = "Someone Else"
	data, err := c.Encode()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "catalogue.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Profile.Name != "Someone Else" {
		t.Errorf("name = %q", loaded.Profile.Name)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
