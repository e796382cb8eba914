package transform

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"b2b/internal/bitmap"
)

func TestTargets(t *testing.T) {
	cases := []struct {
		pack     bool
		path     string
		keepName bool
		want     string
	}{
		{true, "data.tar", false, "data.tar.bmp"},
		{true, "data.tar", true, "data.tar"},
		{false, "data.tar.bmp", false, "data.tar"},
		{false, "data.tar.bmp", true, "data.tar.bmp"},
		{false, "plain", false, "plain"},
	}
	for _, tc := range cases {
		var got string
		if tc.pack {
			got = PackTarget(tc.path, tc.keepName)
		} else {
			got = UnpackTarget(tc.path, tc.keepName)
		}
		if got != tc.want {
			t.Errorf("target(%q, keep=%v) = %q, want %q", tc.path, tc.keepName, got, tc.want)
		}
	}
}

func TestPackUnpackFileStaged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.dat")
	original := testContent(4096)
	if err := os.WriteFile(path, original, 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := PackFile(path, Options{Digest: true})
	if err != nil {
		t.Fatalf("PackFile: %v", err)
	}
	if out != path+BmpExt {
		t.Fatalf("packed to %q, want %q", out, path+BmpExt)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("source still exists after rename: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat packed: %v", err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Fatalf("packed mode = %v, want 0640", info.Mode().Perm())
	}

	back, result, err := UnpackFile(out, Options{Verify: true})
	if err != nil {
		t.Fatalf("UnpackFile: %v", err)
	}
	if back != path {
		t.Fatalf("unpacked to %q, want %q", back, path)
	}
	if result != bitmap.VerifyOK {
		t.Fatalf("verify result = %v, want VerifyOK", result)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("bitmap still exists after rename: %v", err)
	}

	restored, err := os.ReadFile(back)
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if !bytes.Equal(restored, original) {
		t.Fatal("restored contents differ")
	}

	assertNoStagingLeftovers(t, dir)
}

func TestPackFileKeepName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.dat")
	if err := os.WriteFile(path, testContent(100), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := PackFile(path, Options{KeepName: true})
	if err != nil {
		t.Fatalf("PackFile: %v", err)
	}
	if out != path {
		t.Fatalf("packed to %q, want %q", out, path)
	}

	back, _, err := UnpackFile(out, Options{KeepName: true})
	if err != nil {
		t.Fatalf("UnpackFile: %v", err)
	}
	restored, err := os.ReadFile(back)
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if !bytes.Equal(restored, testContent(100)) {
		t.Fatal("restored contents differ")
	}
}

func TestPackUnpackFileInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.dat")
	original := testContent(1234)
	if err := os.WriteFile(path, original, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := PackFile(path, Options{InPlace: true})
	if err != nil {
		t.Fatalf("PackFile: %v", err)
	}
	back, _, err := UnpackFile(out, Options{InPlace: true})
	if err != nil {
		t.Fatalf("UnpackFile: %v", err)
	}
	restored, err := os.ReadFile(back)
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if !bytes.Equal(restored, original) {
		t.Fatal("restored contents differ")
	}
	assertNoStagingLeftovers(t, dir)
}

func TestUnpackFileLeavesSourceOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notabitmap.bmp")
	content := testContent(500)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, _, err := UnpackFile(path, Options{}); err == nil {
		t.Fatal("expected an error unpacking a non-bitmap")
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("source gone after failed staged unpack: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("source mutated by failed staged unpack")
	}
	assertNoStagingLeftovers(t, dir)
}

func assertNoStagingLeftovers(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".b2b-") {
			t.Fatalf("staging leftover %s", e.Name())
		}
	}
}
