package fetchpipe

import (
	"os"
	"testing"

	"github.com/archivecrawl/crawler/internal/normalizeurl"
	"github.com/archivecrawl/crawler/pkg/hashutil"
)

func mustCanonical(t *testing.T, raw string) normalizeurl.Canonical {
	t.Helper()
	c, err := normalizeurl.Normalize(raw, nil, false)
	if err != nil {
		t.Fatalf("normalizing %q: %v", raw, err)
	}
	return c
}

func TestBinaryKindOf(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://example.com/files/report.pdf", "pdf"},
		{"https://example.com/files/Report.PDF", "pdf"},
		{"https://example.com/docs/page", ""},
		{"https://example.com/docs/page.html", ""},
	}
	for _, tc := range cases {
		target := mustCanonical(t, tc.url)
		if got := binaryKindOf(target); got != tc.want {
			t.Errorf("binaryKindOf(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestPersistBinaryDocument(t *testing.T) {
	dir := t.TempDir()
	p := &Pipeline{params: Params{AssetOutputDir: dir, AssetHashAlgo: hashutil.HashAlgoSHA256}}

	target := mustCanonical(t, "https://example.com/files/report.pdf")
	data := []byte("%PDF-1.4 fixture content")

	localPath, err := p.persistBinaryDocument(target, "pdf", data)
	if err != nil {
		t.Fatalf("persistBinaryDocument: %v", err)
	}
	if localPath == "" {
		t.Fatal("expected a non-empty local path")
	}

	written, err := os.ReadFile(dir + "/" + localPath)
	if err != nil {
		t.Fatalf("reading persisted file: %v", err)
	}
	if string(written) != string(data) {
		t.Errorf("persisted content = %q, want %q", written, data)
	}
}

func TestPersistBinaryDocumentNoOutputDir(t *testing.T) {
	p := &Pipeline{params: Params{AssetHashAlgo: hashutil.HashAlgoSHA256}}
	target := mustCanonical(t, "https://example.com/report.pdf")

	if _, err := p.persistBinaryDocument(target, "pdf", []byte("x")); err == nil {
		t.Error("expected an error when AssetOutputDir is empty")
	}
}
