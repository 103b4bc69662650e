package template

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/manager"
)

const gdprTemplateYAML = `
id: gdpr-custom
name: GDPR Custom
category: gdpr
description: Custom GDPR template
config:
  entities:
    - type: EMAIL_ADDRESS
      action: redact
      confidence_threshold: 0.9
    - type: PERSON
      action: replace
      replacement: "[DSR]"
`

func writeTemplate(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing template file: %v", err)
	}
}

func TestFileSourceLoad(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "gdpr.yaml", gdprTemplateYAML)
	writeTemplate(t, dir, "notes.txt", "not a template")
	writeTemplate(t, dir, ".hidden.yaml", "id: hidden\nname: hidden\n")

	fs, err := NewFileSource(dir, nil)
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}

	ctx := context.Background()
	templates, err := fs.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTemplates() error = %v", err)
	}
	if len(templates) != 1 {
		t.Fatalf("templates = %d, want 1 (non-yaml and hidden files skipped)", len(templates))
	}

	tpl, err := fs.FindTemplateByID(ctx, "gdpr-custom")
	if err != nil {
		t.Fatalf("FindTemplateByID() error = %v", err)
	}
	if tpl == nil || tpl.Name != "GDPR Custom" {
		t.Fatalf("FindTemplateByID() = %+v", tpl)
	}
	if len(tpl.Config.Entities) != 2 {
		t.Fatalf("entities = %+v", tpl.Config.Entities)
	}
	if tpl.Config.Entities[0].ConfidenceThreshold == nil || *tpl.Config.Entities[0].ConfidenceThreshold != 0.9 {
		t.Errorf("threshold not decoded: %+v", tpl.Config.Entities[0])
	}
	if tpl.Config.Entities[1].Replacement != "[DSR]" {
		t.Errorf("replacement not decoded: %+v", tpl.Config.Entities[1])
	}

	missing, err := fs.FindTemplateByID(ctx, "nope")
	if err != nil {
		t.Fatalf("FindTemplateByID(missing) error = %v", err)
	}
	if missing != nil {
		t.Errorf("FindTemplateByID(missing) = %+v", missing)
	}
}

func TestFileSourceRejectsBrokenFiles(t *testing.T) {
	t.Run("missing id", func(t *testing.T) {
		dir := t.TempDir()
		writeTemplate(t, dir, "broken.yaml", "name: No ID\n")
		if _, err := NewFileSource(dir, nil); err == nil {
			t.Fatal("NewFileSource() accepted a template without an id")
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		dir := t.TempDir()
		writeTemplate(t, dir, "a.yaml", "id: dup\nname: A\n")
		writeTemplate(t, dir, "b.yaml", "id: dup\nname: B\n")
		if _, err := NewFileSource(dir, nil); err == nil {
			t.Fatal("NewFileSource() accepted duplicate template ids")
		}
	})

	t.Run("bad yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeTemplate(t, dir, "bad.yaml", "id: [unclosed")
		if _, err := NewFileSource(dir, nil); err == nil {
			t.Fatal("NewFileSource() accepted unparseable YAML")
		}
	})
}

func TestFileSourceReloadKeepsPreviousSetOnError(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "gdpr.yaml", gdprTemplateYAML)

	fs, err := NewFileSource(dir, nil)
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}

	// Break one file; the loaded set must survive the failed reload.
	writeTemplate(t, dir, "broken.yaml", "name: No ID\n")
	if err := fs.Reload(); err == nil {
		t.Fatal("Reload() accepted a broken directory")
	}

	templates, err := fs.ListTemplates(context.Background())
	if err != nil {
		t.Fatalf("ListTemplates() error = %v", err)
	}
	if len(templates) != 1 || templates[0].ID != "gdpr-custom" {
		t.Errorf("previous set lost after failed reload: %+v", templates)
	}
}

func TestFileSourceWatchReloads(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "gdpr.yaml", gdprTemplateYAML)

	fs, err := NewFileSource(dir, nil)
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fs.Watch(ctx) }()

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)
	writeTemplate(t, dir, "hipaa.yaml", "id: hipaa-custom\nname: HIPAA Custom\ncategory: hipaa\n")

	deadline := time.After(3 * time.Second)
	for {
		tpl, err := fs.FindTemplateByID(context.Background(), "hipaa-custom")
		if err != nil {
			t.Fatalf("FindTemplateByID() error = %v", err)
		}
		if tpl != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("watcher did not pick up the new template file")
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Watch() returned %v, want context.Canceled", err)
	}
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource([]*manager.Template{
		{ID: "b", Name: "Bravo"},
		{ID: "a", Name: "Alpha"},
	})

	ctx := context.Background()
	list, err := src.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTemplates() error = %v", err)
	}
	if len(list) != 2 || list[0].Name != "Alpha" {
		t.Errorf("ListTemplates() = %+v, want sorted by name", list)
	}

	tpl, err := src.FindTemplateByID(ctx, "b")
	if err != nil || tpl == nil || tpl.Name != "Bravo" {
		t.Errorf("FindTemplateByID(b) = %+v, %v", tpl, err)
	}
}
