package comic

import (
	"path/filepath"
	"strings"
	"time"
)

// ArchiveType identifies the container format of a comic file.
type ArchiveType string

const (
	ArchiveCBZ     ArchiveType = "cbz"
	ArchiveCBR     ArchiveType = "cbr"
	ArchiveCB7     ArchiveType = "cb7"
	ArchiveCBT     ArchiveType = "cbt"
	ArchivePDF     ArchiveType = "pdf"
	ArchiveUnknown ArchiveType = ""
)

// ArchiveTypeFor infers the archive type from a filename extension.
func ArchiveTypeFor(filename string) ArchiveType {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "cbz", "zip":
		return ArchiveCBZ
	case "cbr", "rar":
		return ArchiveCBR
	case "cb7", "7z":
		return ArchiveCB7
	case "cbt", "tar":
		return ArchiveCBT
	case "pdf":
		return ArchivePDF
	default:
		return ArchiveUnknown
	}
}

// FileDetails holds the loaded physical characteristics of an archive.
type FileDetails struct {
	Size int64
	Hash string
}

// Record is a comic persisted by the library repository. Only the lifecycle
// machine writes State; jobs may update the auxiliary fields.
type Record struct {
	ID          int64
	State       State
	Filename    string
	ArchiveType ArchiveType
	Missing     bool
	FileDetails *FileDetails

	ContentsLoaded     bool
	BlockedPagesMarked bool
	BlockedPages       int
	Recreating         bool

	Publisher string
	Series    string
	Volume    string
	Issue     string
	Title     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord builds a freshly discovered record in the initial state.
func NewRecord(filename string) *Record {
	return &Record{
		State:       StateCreated,
		Filename:    filename,
		ArchiveType: ArchiveTypeFor(filename),
	}
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	if r.FileDetails != nil {
		details := *r.FileDetails
		clone.FileDetails = &details
	}
	return &clone
}

// Flag reads one of the boolean processing flags.
func (r *Record) Flag(flag Flag) bool {
	switch flag {
	case FlagMissing:
		return r.Missing
	case FlagContentsLoaded:
		return r.ContentsLoaded
	case FlagBlockedPagesMarked:
		return r.BlockedPagesMarked
	case FlagRecreating:
		return r.Recreating
	default:
		return false
	}
}

// ResetProcessing clears everything derived from the archive contents so the
// record is processed again from scratch.
func (r *Record) ResetProcessing() {
	r.ContentsLoaded = false
	r.BlockedPagesMarked = false
	r.BlockedPages = 0
	r.FileDetails = nil
	r.Recreating = false
}

// ClearMetadata removes descriptive metadata.
func (r *Record) ClearMetadata() {
	r.Publisher = ""
	r.Series = ""
	r.Volume = ""
	r.Issue = ""
	r.Title = ""
}

// BaseFilename returns the filename without directory.
func (r *Record) BaseFilename() string {
	return filepath.Base(r.Filename)
}
