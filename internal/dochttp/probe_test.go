package dochttp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestProbeReadyWithDocs(t *testing.T) {
	p := Probe(fstest.MapFS{"swagger.json": &fstest.MapFile{Data: []byte("{}")}})
	if err := p.Check(context.Background()); err != nil {
		t.Fatalf("probe on populated tree: %v", err)
	}
}

func TestProbeFailsWithoutDocRoot(t *testing.T) {
	p := Probe(os.DirFS(filepath.Join(t.TempDir(), "does-not-exist")))
	if err := p.Check(context.Background()); err == nil {
		t.Fatal("probe on missing doc root should fail")
	}
}
