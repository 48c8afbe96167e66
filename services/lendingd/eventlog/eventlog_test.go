package eventlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"lendingpool/core/types"
)

func openJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	journal, err := Open(Config{SQLitePath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })
	return journal, path
}

func TestRecordAndList(t *testing.T) {
	journal, _ := openJournal(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	journal.SetClock(func() time.Time { return now })

	ctx := context.Background()
	require.NoError(t, journal.Record(ctx, []*types.Event{
		{Type: "lending.deposit", Attributes: map[string]string{"user": "lp1a", "amount": "10"}},
		nil,
		{Type: "lending.borrow", Attributes: map[string]string{"user": "lp1a", "amount": "4", "fee": "0"}},
	}))
	now = base.Add(time.Hour)
	require.NoError(t, journal.Record(ctx, []*types.Event{{Type: "lending.deposit"}}))

	all, err := journal.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, rec := range all {
		require.Equal(t, uint64(i+1), rec.Sequence)
		require.True(t, rec.Verify(), "record %d digest mismatch", i)
	}

	deposits, err := journal.List(ctx, Filter{Type: "lending.deposit"})
	require.NoError(t, err)
	require.Len(t, deposits, 2)

	recent, err := journal.List(ctx, Filter{Since: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	attrs, err := recent[0].Decode()
	require.NoError(t, err)
	require.Empty(t, attrs)

	limited, err := journal.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "lending.deposit", limited[0].Type)
}

func TestSequenceResumesAfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	first, err := Open(Config{SQLitePath: path})
	require.NoError(t, err)
	require.NoError(t, first.Record(context.Background(), []*types.Event{{Type: "a"}, {Type: "b"}}))
	require.NoError(t, first.Close())

	second, err := Open(Config{SQLitePath: path})
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.Record(context.Background(), []*types.Event{{Type: "c"}}))

	records, err := second.List(context.Background(), Filter{Type: "c"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, uint64(3), records[0].Sequence)
}

func TestDigestIgnoresMapOrder(t *testing.T) {
	a := Digest("lending.repay", map[string]string{"interest": "1", "fee": "2", "principal": "3"})
	b := Digest("lending.repay", map[string]string{"principal": "3", "fee": "2", "interest": "1"})
	require.Equal(t, a, b)
	require.Len(t, a, 64)
	require.NotEqual(t, a, Digest("lending.borrow", map[string]string{"interest": "1", "fee": "2", "principal": "3"}))

	tampered := Record{Type: "lending.repay", Attributes: `{"fee":"9"}`, Digest: a}
	require.False(t, tampered.Verify())
}

func TestDigestSeparatesEmbeddedDelimiters(t *testing.T) {
	joined := Digest("lending.deposit", map[string]string{"a": "1\nb=2"})
	split := Digest("lending.deposit", map[string]string{"a": "1", "b": "2"})
	require.NotEqual(t, joined, split)

	require.NotEqual(t,
		Digest("lending.deposit", map[string]string{"a=b": "c"}),
		Digest("lending.deposit", map[string]string{"a": "b=c"}))
	require.NotEqual(t,
		Digest("lending.deposit\na=1", nil),
		Digest("lending.deposit", map[string]string{"a": "1"}))
}

func TestExportParquet(t *testing.T) {
	journal, _ := openJournal(t)
	ctx := context.Background()
	require.NoError(t, journal.Record(ctx, []*types.Event{
		{Type: "lending.deposit", Attributes: map[string]string{"amount": "1"}},
		{Type: "lending.redeem", Attributes: map[string]string{"amount": "1"}},
	}))

	out := filepath.Join(t.TempDir(), "events.parquet")
	written, err := journal.ExportParquet(ctx, out, Filter{})
	require.NoError(t, err)
	require.Equal(t, 2, written)

	fr, err := local.NewLocalFileReader(out)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(parquetRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(2), pr.GetNumRows())
}

func TestOpenRequiresTarget(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatalf("expected empty config to fail")
	}
}
