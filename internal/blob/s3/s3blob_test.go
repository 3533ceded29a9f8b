package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketbot/internal/domain"
)

func TestParseObjectURI(t *testing.T) {
	bucket, key, err := ParseObjectURI("s3://ticks/2025/04/day1.jsonl")
	require.NoError(t, err)
	require.Equal(t, "ticks", bucket)
	require.Equal(t, "2025/04/day1.jsonl", key)

	for _, bad := range []string{"ticks/day1.jsonl", "s3://ticks", "s3:///day1.jsonl", "https://ticks/x"} {
		_, _, err := ParseObjectURI(bad)
		require.Error(t, err, bad)
	}
	require.True(t, IsObjectURI("s3://a/b"))
	require.False(t, IsObjectURI("/tmp/a"))
}

func TestClientKey(t *testing.T) {
	require.Equal(t, "journal/archive/x.jsonl", (&Client{prefix: "journal"}).Key("/archive/x.jsonl"))
	require.Equal(t, "archive/x.jsonl", (&Client{}).Key("archive/x.jsonl"))
}

func TestClientLocate(t *testing.T) {
	c := &Client{bucket: "ticks", prefix: "journal"}

	bucket, key, err := c.Locate("archive/s1.jsonl")
	require.NoError(t, err)
	require.Equal(t, "ticks", bucket)
	require.Equal(t, "journal/archive/s1.jsonl", key)

	bucket, key, err = c.Locate("s3://replays/round4/day1.jsonl")
	require.NoError(t, err)
	require.Equal(t, "replays", bucket)
	require.Equal(t, "round4/day1.jsonl", key, "URIs skip the prefix")

	_, _, err = c.Locate("/")
	require.Error(t, err)
	_, _, err = c.Locate("s3://replays")
	require.Error(t, err)
}

func TestNormaliseEndpoint(t *testing.T) {
	require.Equal(t, "http://localhost:9000", normaliseEndpoint("http://localhost:9000", true))
	require.Equal(t, "https://minio.local", normaliseEndpoint("minio.local", true))
	require.Equal(t, "http://minio.local", normaliseEndpoint("minio.local", false))
}

type memWriter struct {
	objects   map[string][]byte
	multipart bool
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = b
	return nil
}

func (w *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	w.multipart = true
	return w.Put(ctx, path, data, ndjson)
}

type sliceJournal []domain.TickRecord

func (j sliceJournal) Append(context.Context, domain.TickRecord) error { return nil }

func (j sliceJournal) ListBySession(_ context.Context, session string, _ domain.ListOpts) ([]domain.TickRecord, error) {
	var out []domain.TickRecord
	for _, r := range j {
		if r.Session == session {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestArchiveSession(t *testing.T) {
	w := &memWriter{objects: map[string][]byte{}}
	journal := sliceJournal{
		{Session: "replay", Timestamp: 100, Conversions: 1},
		{Session: "other", Timestamp: 100},
		{Session: "replay", Timestamp: 200, Conversions: 1},
	}
	a := NewArchiver(w, journal)
	a.now = func() time.Time { return time.Date(2025, 4, 1, 23, 0, 0, 0, time.UTC) }

	n, err := a.ArchiveSession(context.Background(), "replay")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.False(t, w.multipart)

	body, ok := w.objects["archive/ticks/replay/2025-04-01.jsonl"]
	require.True(t, ok)
	sc := bufio.NewScanner(bytes.NewReader(body))
	var ts []int64
	for sc.Scan() {
		var rec domain.TickRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		ts = append(ts, rec.Timestamp)
	}
	require.Equal(t, []int64{100, 200}, ts)

	n, err = a.ArchiveSession(context.Background(), "empty")
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, w.objects, 1)
}
