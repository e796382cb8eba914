// Package bitmap models the 178-byte record written at the start of every
// converted file: a Windows V5 bitmap container header followed by the
// conversion trailer that records how to undo the transform.
package bitmap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// BytesPerPixel is fixed: 32-bit BGRA is the only supported pixel format.
	BytesPerPixel = 4

	// BitmapID is the "BM" magic stored in the first two bytes.
	BitmapID uint16 = 0x4D42

	// BitmapHeaderSize is the bitmap file header (14 bytes) plus the V5
	// DIB header (124 bytes).
	BitmapHeaderSize = 138

	// ConvHeaderSize is the conversion trailer that follows the bitmap
	// header.
	ConvHeaderSize = 40

	// TotalHeaderSize is the full prefix the transform relocates.
	TotalHeaderSize = BitmapHeaderSize + ConvHeaderSize

	// MaxInputSize bounds supported input files. The original size is
	// stored as a u32; the 1 MiB of headroom keeps pixmap_size plus the
	// bitmap header inside u32 range after the pixel grid rounds the
	// capacity up.
	MaxInputSize = math.MaxUint32 - 1<<20
)

// Signature marks a file as produced by this tool. A V5 bitmap from any
// other source will not carry these 16 bytes at offset 146.
var Signature = U128{Lo: 0x468E85B0B9C0FB9E, Hi: 0x06FAFEC0D7EF10C4}

var (
	ErrInvalidBitmapID  = errors.New("container id mismatch (not a bitmap)")
	ErrBadPaddingSize   = errors.New("padding size exceeds pixel data size")
	ErrInvalidSignature = errors.New("format signature mismatch (not produced by b2b)")
)

// U128 is an unsigned 128-bit integer. Lo precedes Hi so that a
// little-endian binary.Write of the struct lays the value out as the
// 16-byte little-endian integer the file format uses.
type U128 struct {
	Lo, Hi uint64
}

// U128FromBytes interprets b as a big-endian unsigned integer, the
// orientation the digest module emits.
func U128FromBytes(b [16]byte) U128 {
	return U128{
		Hi: binary.BigEndian.Uint64(b[0:8]),
		Lo: binary.BigEndian.Uint64(b[8:16]),
	}
}

func (u U128) IsZero() bool { return u.Hi == 0 && u.Lo == 0 }

func (u U128) String() string {
	return fmt.Sprintf("%016x%016x", u.Hi, u.Lo)
}

// digestFlag is the presence bit of the digest slot: the MSB of the
// 128-bit value.
const digestFlag = uint64(1) << 63 // applied to U128.Hi

// OptionalDigest packs an optional 127-bit content fingerprint into a
// single 128-bit slot. The top bit is the presence flag; the literal
// value zero is the canonical absent encoding.
type OptionalDigest struct {
	Raw U128
}

// PackDigest stores fp with the presence bit forced on. The top bit of
// the fingerprint itself is sacrificed; comparisons mask it on both sides.
func PackDigest(fp U128) OptionalDigest {
	fp.Hi |= digestFlag
	return OptionalDigest{Raw: fp}
}

// NoDigest returns the absent encoding.
func NoDigest() OptionalDigest { return OptionalDigest{} }

// Fingerprint returns the stored 127-bit payload, or false when absent.
func (od OptionalDigest) Fingerprint() (U128, bool) {
	if od.Raw.Hi&digestFlag == 0 {
		return U128{}, false
	}
	fp := od.Raw
	fp.Hi &^= digestFlag
	return fp, true
}

// FileHeader is the 138-byte bitmap container header: the BITMAPFILEHEADER
// followed by a BITMAPV5HEADER. Every field beyond the geometry is held at
// a fixed value so all produced files share one container shape.
// https://learn.microsoft.com/en-us/windows/win32/api/wingdi/ns-wingdi-bitmapv5header
type FileHeader struct {
	ID              uint16   // File type, must be 0x4D42 ("BM").
	FileSize        uint32   // Size of the whole bitmap file, in bytes.
	Reserved        uint32   // Reserved, zero.
	PixelOffset     uint32   // Offset to the pixel array (138).
	DIBSize         uint32   // V5 DIB header size (124).
	Width           uint32   // Width of the pixel grid, in pixels.
	Height          uint32   // Height of the pixel grid, in pixels.
	Planes          uint16   // Plane count, always 1.
	BitsPerPixel    uint16   // Always 32.
	Compression     uint32   // 3 = BI_BITFIELDS, raw packed channels.
	PixmapSize      uint32   // Pixel data size: Width*Height*4.
	HorizontalRes   uint32   // Pixels per meter, fixed.
	VerticalRes     uint32   // Pixels per meter, fixed.
	PaletteSize     uint32   // No palette.
	ImportantColors uint32   // Zero: all colors matter equally little.
	RedMask         uint32   // 0x00FF0000
	GreenMask       uint32   // 0x0000FF00
	BlueMask        uint32   // 0x000000FF
	AlphaMask       uint32   // 0xFF000000
	ColorSpace      uint32   // 0x57696E20 "Win " (LCS_WINDOWS_COLOR_SPACE).
	Endpoints       [36]byte // CIEXYZ endpoints, unused for "Win ".
	RedGamma        uint32
	GreenGamma      uint32
	BlueGamma       uint32
	Intent          uint32
	ProfileData     uint32
	ProfileSize     uint32
	Reserved2       uint32
}

// ConvHeader is the 40-byte conversion trailer placed directly after the
// bitmap header. It carries everything the reverse transform needs.
type ConvHeader struct {
	PaddingSize      uint32         // Trailing zero bytes after the relocated prefix.
	OriginalFileSize uint32         // Exact size to restore to.
	Signature        U128           // Must equal Signature.
	Digest           OptionalDigest // Optional content fingerprint.
}

// Header is the combined record occupying the first TotalHeaderSize bytes
// of a converted file.
type Header struct {
	File FileHeader
	Conv ConvHeader
}

// Geometry is the pixel grid derived from an input size.
type Geometry struct {
	Width       uint32
	Height      uint32
	PixmapSize  uint32
	PaddingSize uint32
}

// DeriveGeometry picks the smallest roughly square 32-bit pixel grid whose
// raw byte capacity holds the conversion trailer plus the file itself, and
// the padding left over. All arithmetic is integer, so the result is exact
// for every representable size.
func DeriveGeometry(fileSize uint32) Geometry {
	total := uint64(fileSize) + ConvHeaderSize

	// Smallest w with 4*w*w >= total: the integer form of
	// ceil(sqrt(total/4)).
	c := ceilDiv(total, BytesPerPixel)
	w := isqrt(c)
	if w*w < c {
		w++
	}

	h := ceilDiv(total, w*BytesPerPixel)
	pixmap := w * h * BytesPerPixel

	return Geometry{
		Width:       uint32(w),
		Height:      uint32(h),
		PixmapSize:  uint32(pixmap),
		PaddingSize: uint32(pixmap - total),
	}
}

// NewHeader builds the full header for a file of the given size. It cannot
// fail: the geometry guarantees a non-negative padding by construction.
func NewHeader(fileSize uint32, od OptionalDigest) *Header {
	g := DeriveGeometry(fileSize)
	return &Header{
		File: FileHeader{
			ID:            BitmapID,
			FileSize:      g.PixmapSize + BitmapHeaderSize,
			PixelOffset:   BitmapHeaderSize,
			DIBSize:       BitmapHeaderSize - 14,
			Width:         g.Width,
			Height:        g.Height,
			Planes:        1,
			BitsPerPixel:  BytesPerPixel * 8,
			Compression:   3,
			PixmapSize:    g.PixmapSize,
			HorizontalRes: 4000,
			VerticalRes:   4000,
			RedMask:       0x00FF0000,
			GreenMask:     0x0000FF00,
			BlueMask:      0x000000FF,
			AlphaMask:     0xFF000000,
			ColorSpace:    0x57696E20,
		},
		Conv: ConvHeader{
			PaddingSize:      g.PaddingSize,
			OriginalFileSize: fileSize,
			Signature:        Signature,
			Digest:           od,
		},
	}
}

// ReadHeader decodes a header from r. It does not validate; callers run
// Validate before trusting any field.
func ReadHeader(r io.Reader) (*Header, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return &h, nil
}

// Encode writes the exact TotalHeaderSize-byte wire form of h.
func (h *Header) Encode(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	return nil
}

// Validate runs the three structural checks in order: container id,
// padding bound, signature. All must pass before the header is trusted.
func (h *Header) Validate() error {
	if h.File.ID != BitmapID {
		return fmt.Errorf("%w: got 0x%04X", ErrInvalidBitmapID, h.File.ID)
	}
	if h.Conv.PaddingSize >= h.File.PixmapSize {
		return fmt.Errorf("%w: padding %d, pixel data %d", ErrBadPaddingSize, h.Conv.PaddingSize, h.File.PixmapSize)
	}
	if h.Conv.Signature != Signature {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyResult is the outcome of comparing a freshly computed fingerprint
// of the restored file against the digest embedded at conversion time.
// It is informational: a mismatch never undoes a completed restoration.
type VerifyResult int

const (
	// VerifyNotPossible means the file was converted without a digest.
	VerifyNotPossible VerifyResult = iota
	VerifyOK
	VerifyMismatch
)

func (v VerifyResult) String() string {
	switch v {
	case VerifyOK:
		return "verified"
	case VerifyMismatch:
		return "mismatch"
	default:
		return "not possible"
	}
}

// Verify compares fp against the embedded digest. The top bit of fp is
// ignored, mirroring the bit the presence flag occupies in the slot.
func (h *Header) Verify(fp U128) VerifyResult {
	stored, ok := h.Conv.Digest.Fingerprint()
	if !ok {
		return VerifyNotPossible
	}
	fp.Hi &^= digestFlag
	if stored == fp {
		return VerifyOK
	}
	return VerifyMismatch
}

func ceilDiv(a, b uint64) uint64 {
	return (a + b - 1) / b
}

// isqrt returns floor(sqrt(n)). The float64 seed is within one of the true
// root for the sizes the format admits; the correction loops make the
// result exact regardless.
func isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	r := uint64(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
