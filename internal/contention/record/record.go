package record

import (
	"strconv"
	"strings"
)

// Wire format constants.
const (
	// Tag starts every contended-enter record.
	Tag = "MCE"

	// EnteredSuffix is appended to Tag for contended-entered records.
	EnteredSuffix = "D"

	// SegmentSep separates the top-level segments of a record.
	SegmentSep = "|"

	// FieldSep separates fields inside a segment.
	FieldSep = "^^^"
)

// EnterSegments is the number of segments following the tag in an MCE record.
const EnterSegments = 5

// EnteredSegments is the number of segments following the tag in an MCED record.
const EnteredSegments = 1

// Hash is a 32-bit identity hash that may be absent.
//
// The zero value is an absent hash. Absent hashes render as an empty field
// because zero is a legal identity hash and cannot double as a sentinel.
type Hash struct {
	value uint32
	valid bool
}

// NewHash wraps a hash value reported by the runtime.
func NewHash(v int32) Hash {
	return Hash{value: uint32(v), valid: true}
}

// NoHash returns an absent hash.
func NoHash() Hash {
	return Hash{}
}

// Valid reports whether the hash is present.
func (h Hash) Valid() bool {
	return h.valid
}

// Value returns the raw hash value (0 when absent).
func (h Hash) Value() int32 {
	return int32(h.value)
}

// String renders the hash as unpadded lowercase hexadecimal of its unsigned
// 32-bit value, or "" when absent.
//
// Example: NewHash(1967270024) → "75353688", NewHash(-1) → "ffffffff".
func (h Hash) String() string {
	if !h.valid {
		return ""
	}
	return strconv.FormatUint(uint64(h.value), 16)
}

// EnterBase is the leading segment of an MCE record.
type EnterBase struct {
	TimestampMs    int64
	ThreadName     string
	LockHash       Hash
	ClassSignature string
}

// EnteredBase is the only segment of an MCED record.
type EnteredBase struct {
	TimestampMs int64
	ThreadName  string
	LockHash    Hash
}

// Usage describes the owner of a contended monitor and the pressure on it.
type Usage struct {
	OwnerName         string
	EntryCount        int
	WaiterCount       int
	NotifyWaiterCount int
}

// Enter is a complete contended-enter record.
type Enter struct {
	Base           EnterBase
	Owned          []Hash
	Usage          Usage
	ContenderStack string
	OwnerStack     string
}

// Entered is a complete contended-entered record.
type Entered struct {
	Base EnteredBase
}

var sanitizer = strings.NewReplacer(
	SegmentSep, "/",
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
	"^", "_",
)

// Sanitize rewrites s so that it cannot break the record layout: segment
// separators become '/', line breaks become spaces and carets become '_'.
// Every caret goes, since one at either end of a value would merge with the
// neighbouring FieldSep.
func Sanitize(s string) string {
	if !strings.ContainsAny(s, "|\r\n^") {
		return s
	}
	return sanitizer.Replace(s)
}

var stackSanitizer = strings.NewReplacer(
	SegmentSep, "/",
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
)

// SanitizeStack is Sanitize for stack snapshots, whose frames are already
// joined by FieldSep: only segment separators and line breaks are rewritten.
func SanitizeStack(s string) string {
	if !strings.ContainsAny(s, "|\r\n") {
		return s
	}
	return stackSanitizer.Replace(s)
}

// FormatEnterBase renders ts^^^thread^^^lockHash^^^classSig.
func FormatEnterBase(b EnterBase) string {
	var sb strings.Builder
	writeEnterBase(&sb, b)
	return sb.String()
}

// FormatEnteredBase renders ts^^^thread^^^lockHash.
func FormatEnteredBase(b EnteredBase) string {
	var sb strings.Builder
	writeEnteredBase(&sb, b)
	return sb.String()
}

// FormatOwnedMonitors renders the hashes in the given order joined by
// FieldSep. Absent hashes are skipped; no hashes yields "".
func FormatOwnedMonitors(owned []Hash) string {
	var sb strings.Builder
	writeOwned(&sb, owned)
	return sb.String()
}

// FormatUsage renders owner^^^entryCount^^^waiterCount^^^notifyWaiterCount.
func FormatUsage(u Usage) string {
	var sb strings.Builder
	writeUsage(&sb, u)
	return sb.String()
}

// Line assembles the full MCE line including the trailing newline.
func (e Enter) Line() string {
	var sb strings.Builder
	sb.Grow(256 + len(e.ContenderStack) + len(e.OwnerStack))

	sb.WriteString(Tag)
	sb.WriteString(SegmentSep)
	writeEnterBase(&sb, e.Base)
	sb.WriteString(SegmentSep)
	writeOwned(&sb, e.Owned)
	sb.WriteString(SegmentSep)
	writeUsage(&sb, e.Usage)
	sb.WriteString(SegmentSep)
	sb.WriteString(SanitizeStack(e.ContenderStack))
	sb.WriteString(SegmentSep)
	sb.WriteString(SanitizeStack(e.OwnerStack))
	sb.WriteByte('\n')

	return sb.String()
}

// Line assembles the full MCED line including the trailing newline.
func (e Entered) Line() string {
	var sb strings.Builder
	sb.Grow(64 + len(e.Base.ThreadName))

	sb.WriteString(Tag)
	sb.WriteString(EnteredSuffix)
	sb.WriteString(SegmentSep)
	writeEnteredBase(&sb, e.Base)
	sb.WriteByte('\n')

	return sb.String()
}

// Split separates a record line into its tag and top-level segments.
// The trailing newline, if any, is ignored. It does not interpret fields.
func Split(line string) (tag string, segments []string) {
	line = strings.TrimSuffix(line, "\n")
	parts := strings.Split(line, SegmentSep)
	return parts[0], parts[1:]
}

func writeEnterBase(sb *strings.Builder, b EnterBase) {
	sb.WriteString(strconv.FormatInt(b.TimestampMs, 10))
	sb.WriteString(FieldSep)
	sb.WriteString(Sanitize(b.ThreadName))
	sb.WriteString(FieldSep)
	sb.WriteString(b.LockHash.String())
	sb.WriteString(FieldSep)
	sb.WriteString(Sanitize(b.ClassSignature))
}

func writeEnteredBase(sb *strings.Builder, b EnteredBase) {
	sb.WriteString(strconv.FormatInt(b.TimestampMs, 10))
	sb.WriteString(FieldSep)
	sb.WriteString(Sanitize(b.ThreadName))
	sb.WriteString(FieldSep)
	sb.WriteString(b.LockHash.String())
}

func writeOwned(sb *strings.Builder, owned []Hash) {
	first := true
	for _, h := range owned {
		if !h.Valid() {
			continue
		}
		if !first {
			sb.WriteString(FieldSep)
		}
		sb.WriteString(h.String())
		first = false
	}
}

func writeUsage(sb *strings.Builder, u Usage) {
	sb.WriteString(Sanitize(u.OwnerName))
	sb.WriteString(FieldSep)
	sb.WriteString(strconv.Itoa(u.EntryCount))
	sb.WriteString(FieldSep)
	sb.WriteString(strconv.Itoa(u.WaiterCount))
	sb.WriteString(FieldSep)
	sb.WriteString(strconv.Itoa(u.NotifyWaiterCount))
}
