package history

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saved, err := s.Record(ctx, Entry{
		Module:  "search",
		Query:   "Smith homestead",
		Kind:    "text",
		Summary: "Found in the 1850 census.",
		Payload: json.RawMessage(`{"state":"result_ready"}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	require.False(t, saved.CreatedAt.IsZero())

	got, err := s.Get(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, "search", got.Module)
	require.Equal(t, "Smith homestead", got.Query)
	require.Equal(t, "Found in the 1850 census.", got.Summary)
	require.JSONEq(t, `{"state":"result_ready"}`, string(got.Payload))
	require.True(t, saved.CreatedAt.Equal(got.CreatedAt))
}

func TestStore_GetUnknown(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, q := range []string{"first", "second", "third"} {
		_, err := s.Record(ctx, Entry{
			Module:    "audit",
			Query:     q,
			Kind:      "text",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	entries, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "third", entries[0].Query)
	require.Equal(t, "second", entries[1].Query)
	require.Nil(t, entries[0].Payload, "List leaves payloads out")
}

func TestStore_ReopenKeepsEntries(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	saved, err := s.Record(context.Background(), Entry{Module: "map", Query: "Lot 7", Kind: "text"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Get(context.Background(), saved.ID)
	require.NoError(t, err)
	require.Equal(t, "Lot 7", got.Query)
	require.Nil(t, got.Payload)
}
