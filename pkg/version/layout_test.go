package version

import "testing"

func TestSnapshotKey(t *testing.T) {
	got := SnapshotKey("", "W", "artifacts", "art-1", 2)
	want := "W/artifacts/art-1/v2.json"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBlobKey(t *testing.T) {
	got, err := BlobKey("prefix", "W", "artifacts", "art-1", 0, "data/a.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "prefix/W/artifacts/art-1/v0/data/a.csv"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBlobKey_RejectsTraversal(t *testing.T) {
	if _, err := BlobKey("", "W", "artifacts", "art-1", 0, "../../etc/passwd"); err == nil {
		t.Error("expected path traversal to be rejected")
	}
}

func TestBlobKey_RejectsEmpty(t *testing.T) {
	if _, err := BlobKey("", "W", "artifacts", "art-1", 0, ""); err == nil {
		t.Error("expected empty path to be rejected")
	}
}

func TestVersionPrefix(t *testing.T) {
	got := VersionPrefix("", "W", "artifacts", "art-1", 3)
	if want := "W/artifacts/art-1/v3/"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestArtifactPrefix(t *testing.T) {
	got := ArtifactPrefix("", "W", "artifacts", "art-1")
	if want := "W/artifacts/art-1/"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
