package transform

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"b2b/internal/bitmap"
)

// BmpExt is appended to file names on pack and stripped on unpack.
const BmpExt = ".bmp"

// Options control the path-level conversion operations.
type Options struct {
	Digest   bool // embed a content fingerprint (pack)
	Verify   bool // check the fingerprint after restoring (unpack)
	InPlace  bool // mutate the file directly instead of staging a copy
	KeepName bool // leave the file name untouched
}

// PackTarget returns the path a packed file ends up at.
func PackTarget(path string, keepName bool) string {
	if keepName {
		return path
	}
	return path + BmpExt
}

// UnpackTarget returns the path an unpacked file ends up at. A file
// without the bitmap extension keeps its name.
func UnpackTarget(path string, keepName bool) string {
	if keepName {
		return path
	}
	trimmed := strings.TrimSuffix(path, BmpExt)
	if trimmed == "" {
		return path
	}
	return trimmed
}

// PackFile converts the file at path into a bitmap and returns the final
// path. By default the conversion runs on a staged copy in the same
// directory which is renamed over the target only after every write
// succeeded, so an interruption cannot lose the source. InPlace restores
// the single-handle behavior.
func PackFile(path string, opts Options) (string, error) {
	target := PackTarget(path, opts.KeepName)
	err := convert(path, target, opts.InPlace, func(f *os.File) error {
		return Embed(f, opts.Digest)
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

// UnpackFile restores the original file hidden in the bitmap at path and
// returns the final path along with the verification outcome.
func UnpackFile(path string, opts Options) (string, bitmap.VerifyResult, error) {
	target := UnpackTarget(path, opts.KeepName)
	result := bitmap.VerifyNotPossible
	err := convert(path, target, opts.InPlace, func(f *os.File) error {
		var err error
		result, err = Extract(f, opts.Verify)
		return err
	})
	if err != nil {
		return "", bitmap.VerifyNotPossible, err
	}
	return target, result, nil
}

// convert runs fn against path and leaves the result at target. In-place
// mode mutates the original handle and renames afterwards; staged mode
// works on a temp copy and renames that into place, removing the source
// when its name changed.
func convert(path, target string, inPlace bool, fn func(*os.File) error) error {
	if inPlace {
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		if err := fn(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
		if target == path {
			return nil
		}
		if err := os.Rename(path, target); err != nil {
			return fmt.Errorf("rename to %s: %w", target, err)
		}
		return nil
	}

	tmp, err := stage(path)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := fn(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close staged copy: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename to %s: %w", target, err)
	}
	if target != path {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

// stage copies path into a temp file in the same directory, so the final
// rename stays on one filesystem, and carries the source mode over.
func stage(path string) (*os.File, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".b2b-*")
	if err != nil {
		return nil, fmt.Errorf("create staged copy: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("stage %s: %w", path, err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("stage %s: %w", path, err)
	}
	return tmp, nil
}
