package transform

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"b2b/internal/bitmap"
)

// testContent builds a deterministic, non-repeating payload.
func testContent(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*31 + 7)
	}
	return data
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func openRW(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func embedFile(t *testing.T, path string, withDigest bool) {
	t.Helper()
	f := openRW(t, path)
	if err := Embed(f, withDigest); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 5, 10, 177, 178, 179, 1000, 64*1024 + 7}
	for _, size := range sizes {
		for _, withDigest := range []bool{false, true} {
			name := "size_" + strconv.Itoa(size)
			if withDigest {
				name += "_digest"
			}
			t.Run(name, func(t *testing.T) {
				original := testContent(size)
				path := writeTemp(t, original)

				embedFile(t, path, withDigest)

				// The converted file is a bitmap of the exact derived size.
				g := bitmap.DeriveGeometry(uint32(size))
				info, err := os.Stat(path)
				if err != nil {
					t.Fatalf("stat: %v", err)
				}
				if want := int64(g.PixmapSize) + bitmap.BitmapHeaderSize; info.Size() != want {
					t.Fatalf("converted size = %d, want %d", info.Size(), want)
				}
				head, err := os.ReadFile(path)
				if err != nil {
					t.Fatalf("read converted: %v", err)
				}
				if head[0] != 'B' || head[1] != 'M' {
					t.Fatalf("converted file does not start with BM")
				}

				f := openRW(t, path)
				result, err := Extract(f, withDigest)
				if err != nil {
					t.Fatalf("Extract: %v", err)
				}
				if err := f.Close(); err != nil {
					t.Fatalf("close: %v", err)
				}
				if withDigest && result != bitmap.VerifyOK {
					t.Fatalf("verify result = %v, want VerifyOK", result)
				}
				if !withDigest && result != bitmap.VerifyNotPossible {
					t.Fatalf("verify result = %v, want VerifyNotPossible", result)
				}

				restored, err := os.ReadFile(path)
				if err != nil {
					t.Fatalf("read restored: %v", err)
				}
				if !bytes.Equal(restored, original) {
					t.Fatalf("restored contents differ (len %d vs %d)", len(restored), len(original))
				}
			})
		}
	}
}

func TestHelloScenario(t *testing.T) {
	path := writeTemp(t, []byte("hello"))
	embedFile(t, path, false)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read converted: %v", err)
	}
	if len(raw) != 48+bitmap.BitmapHeaderSize {
		t.Fatalf("converted size = %d, want %d", len(raw), 48+bitmap.BitmapHeaderSize)
	}
	hdr, err := bitmap.ReadHeader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.File.Width != 4 || hdr.File.Height != 3 {
		t.Fatalf("geometry = %dx%d, want 4x3", hdr.File.Width, hdr.File.Height)
	}
	if hdr.Conv.PaddingSize != 3 || hdr.Conv.OriginalFileSize != 5 {
		t.Fatalf("padding %d size %d, want 3 and 5", hdr.Conv.PaddingSize, hdr.Conv.OriginalFileSize)
	}

	f := openRW(t, path)
	if _, err := Extract(f, false); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	f.Close()

	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if string(restored) != "hello" {
		t.Fatalf("restored = %q, want %q", restored, "hello")
	}
}

func TestExtractRejectsCorruption(t *testing.T) {
	pack := func(t *testing.T) string {
		path := writeTemp(t, testContent(1000))
		embedFile(t, path, false)
		return path
	}

	corrupt := func(t *testing.T, path string, off int64, b []byte) {
		t.Helper()
		f := openRW(t, path)
		if _, err := f.WriteAt(b, off); err != nil {
			t.Fatalf("corrupt at %d: %v", off, err)
		}
		f.Close()
	}

	extract := func(t *testing.T, path string) error {
		f := openRW(t, path)
		defer f.Close()
		_, err := Extract(f, false)
		return err
	}

	t.Run("container id", func(t *testing.T) {
		path := pack(t)
		corrupt(t, path, 0, []byte{0x00})
		if err := extract(t, path); !errors.Is(err, bitmap.ErrInvalidBitmapID) {
			t.Fatalf("err = %v, want ErrInvalidBitmapID", err)
		}
	})

	t.Run("format signature", func(t *testing.T) {
		path := pack(t)
		corrupt(t, path, 146, []byte{0xFF})
		if err := extract(t, path); !errors.Is(err, bitmap.ErrInvalidSignature) {
			t.Fatalf("err = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("padding bound", func(t *testing.T) {
		path := pack(t)
		huge := make([]byte, 4)
		binary.LittleEndian.PutUint32(huge, 0xFFFFFFFF)
		corrupt(t, path, 138, huge)
		if err := extract(t, path); !errors.Is(err, bitmap.ErrBadPaddingSize) {
			t.Fatalf("err = %v, want ErrBadPaddingSize", err)
		}
	})

	t.Run("truncated header", func(t *testing.T) {
		path := pack(t)
		f := openRW(t, path)
		if err := f.Truncate(100); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		f.Close()
		if err := extract(t, path); err == nil {
			t.Fatal("expected an error for a truncated file")
		}
	})
}

func TestVerifyMismatchAfterTamper(t *testing.T) {
	original := testContent(1000)
	path := writeTemp(t, original)
	embedFile(t, path, true)

	// Flip one byte in the payload region. Bytes past the header keep
	// their original offsets, so this lands at original[500].
	f := openRW(t, path)
	var b [1]byte
	if _, err := f.ReadAt(b[:], 500); err != nil {
		t.Fatalf("read: %v", err)
	}
	b[0] ^= 0xFF
	if _, err := f.WriteAt(b[:], 500); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	result, err := Extract(f, true)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	f.Close()
	if result != bitmap.VerifyMismatch {
		t.Fatalf("verify result = %v, want VerifyMismatch", result)
	}

	// The restoration still completed; exactly the tampered byte differs.
	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if len(restored) != len(original) {
		t.Fatalf("restored length = %d, want %d", len(restored), len(original))
	}
	if restored[500] == original[500] {
		t.Fatal("tampered byte was silently healed")
	}
}

func TestEmbedRejectsOversizeInput(t *testing.T) {
	path := writeTemp(t, nil)
	f := openRW(t, path)
	// A sparse file is enough: the size check runs before any read.
	if err := f.Truncate(int64(bitmap.MaxInputSize) + 1); err != nil {
		t.Skipf("cannot create sparse file: %v", err)
	}
	err := Embed(f, false)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
}
