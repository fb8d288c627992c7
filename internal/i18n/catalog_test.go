package i18n

import (
	"strings"
	"testing"
)

func TestEnglishCatalog(t *testing.T) {
	catalog, err := New("en")
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if catalog.Language() != "en" {
		t.Fatalf("language = %q, want en", catalog.Language())
	}
	if got := catalog.T("queue.empty"); got != "Queue is empty" {
		t.Fatalf("queue.empty = %q", got)
	}
	got := catalog.T("job.added", "video", "https://youtu.be/abc123def45")
	if !strings.Contains(got, "video") || !strings.Contains(got, "abc123def45") {
		t.Fatalf("job.added = %q", got)
	}
}

func TestTurkishCatalog(t *testing.T) {
	catalog, err := New("tr")
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if catalog.Language() != "tr" {
		t.Fatalf("language = %q, want tr", catalog.Language())
	}
	if got := catalog.T("queue.empty"); got != "Kuyruk boş" {
		t.Fatalf("queue.empty = %q", got)
	}
}

func TestUnknownLanguageFallsBackToEnglish(t *testing.T) {
	catalog, err := New("fr")
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if got := catalog.T("queue.empty"); got != "Queue is empty" {
		t.Fatalf("queue.empty = %q", got)
	}
}

func TestMissingKeyReturnsKey(t *testing.T) {
	catalog, err := New("tr")
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if got := catalog.T("no.such.key"); got != "no.such.key" {
		t.Fatalf("missing key = %q", got)
	}
}

func TestRegionalVariantMatches(t *testing.T) {
	catalog, err := New("tr-TR")
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if catalog.Language() != "tr" {
		t.Fatalf("language = %q, want tr", catalog.Language())
	}
}
