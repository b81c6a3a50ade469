package export

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tc := range cases {
		if got := formatBytes(tc.n); got != tc.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestStorageStats(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.csv"), make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.xlsx"), make([]byte, 400), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := NewInspector(dir).Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.FileCount != 2 {
		t.Fatalf("expected 2 files, got %d", st.FileCount)
	}
	if st.TotalBytes != 500 {
		t.Fatalf("expected 500 bytes, got %d", st.TotalBytes)
	}
	if st.TotalSize != "500 B" {
		t.Fatalf("expected human size, got %q", st.TotalSize)
	}
}

func TestStorageStatsMissingDir(t *testing.T) {
	st, err := NewInspector(filepath.Join(t.TempDir(), "never-created")).Stats()
	if err != nil {
		t.Fatalf("stats on missing dir: %v", err)
	}
	if st.FileCount != 0 || st.TotalBytes != 0 {
		t.Fatalf("expected empty stats, got %+v", st)
	}
}
