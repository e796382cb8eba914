// Package transform performs the byte relocation that turns a binary file
// into a structurally valid bitmap and back. Embed and Extract mutate one
// open file handle in place; PackFile and UnpackFile wrap them with
// staging, renaming and cleanup at the path level.
package transform

import (
	"errors"
	"fmt"
	"io"
	"os"

	"b2b/internal/bitmap"
	"b2b/internal/digest"
)

// ErrFileTooLarge is returned when an input exceeds what the u32 size
// fields of the format can describe.
var ErrFileTooLarge = errors.New("file too large to convert")

// Embed converts the open file into a bitmap in place.
//
// The sequence is: fingerprint the untouched contents (optional),
// zero-extend short files to a full header's worth of bytes, copy that
// prefix to the end of the file, overwrite the start with the serialized
// header, and resize to the final bitmap length. The resize implicitly
// zero-fills the trailing padding the header accounts for. The steps are
// not atomic; an interruption leaves the file partially converted.
func Embed(f *os.File, withDigest bool) error {
	od := bitmap.NoDigest()
	if withDigest {
		// This must happen before the file is touched in any way.
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("seek: %w", err)
		}
		fp, err := digest.Sum(f)
		if err != nil {
			return fmt.Errorf("fingerprint contents: %w", err)
		}
		od = bitmap.PackDigest(bitmap.U128FromBytes(fp))
	}

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	size := info.Size()
	if size > bitmap.MaxInputSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, int64(bitmap.MaxInputSize))
	}

	hdr := bitmap.NewHeader(uint32(size), od)

	// Guarantee a full header-sized prefix exists to relocate.
	if size < bitmap.TotalHeaderSize {
		if err := f.Truncate(bitmap.TotalHeaderSize); err != nil {
			return fmt.Errorf("extend short file: %w", err)
		}
	}

	// Move the bytes the header is about to overwrite to the end of the
	// file.
	var prefix [bitmap.TotalHeaderSize]byte
	if _, err := f.ReadAt(prefix[:], 0); err != nil {
		return fmt.Errorf("read prefix: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek end: %w", err)
	}
	if _, err := f.Write(prefix[:]); err != nil {
		return fmt.Errorf("relocate prefix: %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek start: %w", err)
	}
	if err := hdr.Encode(f); err != nil {
		return err
	}

	if err := f.Truncate(int64(hdr.File.PixmapSize) + bitmap.BitmapHeaderSize); err != nil {
		return fmt.Errorf("resize to bitmap length: %w", err)
	}
	return nil
}

// Extract reverses Embed on the open file. The returned VerifyResult is
// meaningful only when verify is true; it never affects the restoration,
// which is complete by the time the digest is recomputed.
func Extract(f *os.File, verify bool) (bitmap.VerifyResult, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return bitmap.VerifyNotPossible, fmt.Errorf("seek: %w", err)
	}
	hdr, err := bitmap.ReadHeader(f)
	if err != nil {
		return bitmap.VerifyNotPossible, err
	}
	if err := hdr.Validate(); err != nil {
		return bitmap.VerifyNotPossible, err
	}

	info, err := f.Stat()
	if err != nil {
		return bitmap.VerifyNotPossible, fmt.Errorf("stat: %w", err)
	}
	end := info.Size()

	// The relocated prefix sits immediately before the trailing padding.
	// A source smaller than the header was zero-extended before the
	// relocation, so its prefix copy starts at the header boundary
	// instead and lost its tail of zeros to the final resize; clamp the
	// position and read what survived.
	pos := end - int64(hdr.Conv.PaddingSize) - bitmap.TotalHeaderSize
	if pos < bitmap.TotalHeaderSize {
		pos = bitmap.TotalHeaderSize
	}
	n := int64(bitmap.TotalHeaderSize)
	if rest := end - pos; rest < n {
		n = rest
	}
	if n < 0 {
		n = 0
	}

	var prefix [bitmap.TotalHeaderSize]byte
	if _, err := f.ReadAt(prefix[:n], pos); err != nil {
		return bitmap.VerifyNotPossible, fmt.Errorf("read relocated prefix: %w", err)
	}
	if n > 0 {
		if _, err := f.WriteAt(prefix[:n], 0); err != nil {
			return bitmap.VerifyNotPossible, fmt.Errorf("restore prefix: %w", err)
		}
	}
	if err := f.Truncate(int64(hdr.Conv.OriginalFileSize)); err != nil {
		return bitmap.VerifyNotPossible, fmt.Errorf("restore original size: %w", err)
	}

	if !verify {
		return bitmap.VerifyNotPossible, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return bitmap.VerifyNotPossible, fmt.Errorf("seek: %w", err)
	}
	fp, err := digest.Sum(f)
	if err != nil {
		return bitmap.VerifyNotPossible, fmt.Errorf("fingerprint restored file: %w", err)
	}
	return hdr.Verify(bitmap.U128FromBytes(fp)), nil
}
