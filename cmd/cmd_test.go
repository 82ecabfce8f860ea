package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/preference"
)

func TestCatalogueCommandRoundTrips(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"catalogue", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	if err := Execute(); err != nil {
		t.Fatal(err)
	}
	cat, err := content.Parse(out.Bytes())
	if err != nil {
		t.Fatalf("printed catalogue does not parse: %v", err)
	}
	if !cat.HasSection("contact") {
		t.Error("printed catalogue lost sections")
	}
}

func TestOpenPreferences(t *testing.T) {
	mem, closeMem, err := openPreferences("")
	if err != nil {
		t.Fatal(err)
	}
	defer closeMem()
	if _, ok := mem.(*preference.Memory); !ok {
		t.Errorf("empty path opened %T", mem)
	}

	db, closeDB, err := openPreferences(filepath.Join(t.TempDir(), "nested", "prefs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer closeDB()
	if err := db.Set("visitor", "darkMode", "true"); err != nil {
		t.Fatal(err)
	}
	if v, err := db.Get("visitor", "darkMode"); err != nil || v != "true" {
		t.Fatalf("Get = %q, %v", v, err)
	}
}
