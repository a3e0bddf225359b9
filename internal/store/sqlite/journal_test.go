package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/replygate/replygate/internal/store"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	rec := store.DispatchRecord{
		Channel:      "whatsapp",
		PartnerID:    "918408878186@s.whatsapp.net",
		SessionKey:   "reply:whatsapp:direct:918408878186@s.whatsapp.net",
		BatchSize:    3,
		Status:       store.StatusOK,
		ReplyPreview: "sure, see you at 7",
		LatencyMs:    840,
	}
	if err := j.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records", len(got))
	}

	r := got[0]
	if r.ID == uuid.Nil {
		t.Error("ID was not assigned")
	}
	if r.CreatedAt.IsZero() {
		t.Error("CreatedAt was not assigned")
	}
	if r.Channel != rec.Channel || r.PartnerID != rec.PartnerID || r.SessionKey != rec.SessionKey {
		t.Errorf("identity fields = %+v", r)
	}
	if r.BatchSize != 3 || r.Status != store.StatusOK || r.ReplyPreview != rec.ReplyPreview || r.LatencyMs != 840 {
		t.Errorf("outcome fields = %+v", r)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := j.Record(ctx, store.DispatchRecord{
			Channel:   "whatsapp",
			PartnerID: "p",
			Status:    store.StatusOK,
			BatchSize: i + 1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records", len(got))
	}
	for i, want := range []int{3, 2, 1} {
		if got[i].BatchSize != want {
			t.Errorf("record %d batch_size = %d, want %d", i, got[i].BatchSize, want)
		}
	}
}

func TestRecentLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := j.Record(ctx, store.DispatchRecord{Channel: "telegram", PartnerID: "p", Status: store.StatusOK}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %d records, want 2", len(got))
	}

	all, err := j.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("default limit returned %d records", len(all))
	}
}

func TestRecordFailureStatuses(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	err := j.Record(ctx, store.DispatchRecord{
		Channel:   "discord",
		PartnerID: "123",
		Status:    store.StatusGenerationFailed,
		Error:     "provider timeout",
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := j.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Status != store.StatusGenerationFailed {
		t.Errorf("status = %q", got[0].Status)
	}
	if got[0].Error != "provider timeout" {
		t.Errorf("error = %q", got[0].Error)
	}
	if got[0].ReplyPreview != "" {
		t.Errorf("preview = %q, want empty", got[0].ReplyPreview)
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	if err := j.Record(context.Background(), store.DispatchRecord{Channel: "whatsapp", PartnerID: "p", Status: store.StatusOK}); err != nil {
		t.Fatal(err)
	}
}
