package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/basketbot/internal/domain"
)

const ndjson = "application/x-ndjson"

// JournalArchiver implements domain.Archiver by copying a session's tick
// journal to object storage as JSON lines. Archived records stay in the
// journal.
type JournalArchiver struct {
	writer  domain.BlobWriter
	journal domain.TickJournal
	now     func() time.Time
}

// NewArchiver creates a JournalArchiver.
func NewArchiver(writer domain.BlobWriter, journal domain.TickJournal) *JournalArchiver {
	return &JournalArchiver{writer: writer, journal: journal, now: time.Now}
}

// ArchiveSession uploads every journaled tick of session to
// archive/ticks/<session>/<UTC date>.jsonl and returns the record count.
// Nothing is uploaded for an empty session.
func (a *JournalArchiver) ArchiveSession(ctx context.Context, session string) (int64, error) {
	recs, err := a.journal.ListBySession(ctx, session, domain.ListOpts{})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s query: %w", session, err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", session, err)
	}

	path := ArchivePath(session, a.now())
	if int64(len(buf)) >= MinPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), MinPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), ndjson)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", session, err)
	}
	return int64(len(recs)), nil
}

// ArchivePath builds the object key for a session archive:
//
//	archive/ticks/replay/2025-04-01.jsonl
func ArchivePath(session string, at time.Time) string {
	return fmt.Sprintf("archive/ticks/%s/%s.jsonl", session, at.UTC().Format("2006-01-02"))
}

// marshalJSONL writes one compact JSON document per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*JournalArchiver)(nil)
