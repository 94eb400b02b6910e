package versioning

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ledgerline/policyforge/pkg/assembly"
	"ledgerline/policyforge/pkg/policy"
	"ledgerline/policyforge/pkg/storage"
)

var clock = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return clock }

func seed(t *testing.T, store storage.Store, clauses ...assembly.RenderedClause) *policy.Policy {
	t.Helper()
	p := policy.New("org-1", "aml", "AML Policy", clock)
	p.Clauses = clauses
	p.CustomContent = map[string]string{"intro": "v1 intro"}
	if err := store.CreatePolicy(context.Background(), p); err != nil {
		t.Fatalf("CreatePolicy() error = %v", err)
	}
	return p
}

func clause(code, body string, order int) assembly.RenderedClause {
	return assembly.RenderedClause{Code: code, Title: strings.ToUpper(code), DisplayOrder: order, Body: body}
}

func TestPublish_EmptyPolicyRejected(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seed(t, store)
	m := New(store, nil, nil)

	_, err := m.Publish(ctx, p.ID, PublishRequest{PublishedBy: "alice"})
	if !errors.Is(err, ErrEmptyPolicy) {
		t.Fatalf("Publish() error = %v, want ErrEmptyPolicy", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.PolicyID != p.ID {
		t.Errorf("Publish() error = %T, want *ValidationError for %s", err, p.ID)
	}

	versions, _ := m.List(ctx, p.ID)
	if len(versions) != 0 {
		t.Errorf("List() = %d versions, want 0", len(versions))
	}
}

func TestPublish_ArchivedRejected(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seed(t, store, clause("purpose", "text", 10))
	p.Status = policy.StatusArchived
	if err := store.UpdatePolicy(ctx, p, p.Revision); err != nil {
		t.Fatal(err)
	}

	_, err := New(store, nil, nil).Publish(ctx, p.ID, PublishRequest{})
	if !errors.Is(err, ErrPolicyArchived) {
		t.Errorf("Publish() error = %v, want ErrPolicyArchived", err)
	}
}

func TestPublish_SequentialNumbers(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seed(t, store, clause("purpose", "Applies to Acme.", 10))
	m := New(store, nil, nil).WithClock(fixedClock)

	for want := 1; want <= 3; want++ {
		v, err := m.Publish(ctx, p.ID, PublishRequest{PublishedBy: "alice", ChangeSummary: "update"})
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if v.Number != want {
			t.Errorf("Number = %d, want %d", v.Number, want)
		}
		if !v.Verify() || v.PublishedBy != "alice" || !v.PublishedAt.Equal(clock) {
			t.Errorf("version %d = %+v", want, v)
		}
	}

	cur, err := m.Current(ctx, p.ID)
	if err != nil || cur.Number != 3 {
		t.Errorf("Current() = %v, %v", cur, err)
	}
}

func TestPublish_SnapshotIsImmutable(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seed(t, store, clause("purpose", "original", 10))
	m := New(store, nil, nil)

	if _, err := m.Publish(ctx, p.ID, PublishRequest{}); err != nil {
		t.Fatal(err)
	}

	live, _ := store.GetPolicy(ctx, p.ID)
	live.Clauses[0].Body = "edited"
	if err := store.UpdatePolicy(ctx, live, live.Revision); err != nil {
		t.Fatal(err)
	}

	v, err := m.Get(ctx, p.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v.Clauses[0].Body != "original" {
		t.Errorf("snapshot body = %q, want original", v.Clauses[0].Body)
	}
}

func TestRestore_NumbersNeverReused(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seed(t, store, clause("purpose", "first", 10))
	m := New(store, nil, nil).WithClock(fixedClock)

	if _, err := m.Publish(ctx, p.ID, PublishRequest{}); err != nil {
		t.Fatal(err)
	}

	live, _ := store.GetPolicy(ctx, p.ID)
	live.Clauses = append(live.Clauses, clause("edd", "second", 20))
	live.CustomContent["intro"] = "v2 intro"
	if err := live.Transition(policy.StatusInReview, "bob", clock); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdatePolicy(ctx, live, live.Revision); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Publish(ctx, p.ID, PublishRequest{}); err != nil {
		t.Fatal(err)
	}

	before, _ := store.GetPolicy(ctx, p.ID)
	restored, err := m.Restore(ctx, p.ID, 1, "carol")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored.Status != policy.StatusDraft {
		t.Errorf("Status = %s, want draft", restored.Status)
	}
	if restored.Revision <= before.Revision {
		t.Errorf("Revision = %d, want > %d", restored.Revision, before.Revision)
	}
	if len(restored.Clauses) != 1 || restored.Clauses[0].Body != "first" || restored.CustomContent["intro"] != "v1 intro" {
		t.Errorf("restored content = %+v %v", restored.Clauses, restored.CustomContent)
	}

	versions, _ := m.List(ctx, p.ID)
	if len(versions) != 2 {
		t.Errorf("Restore touched history: %d versions", len(versions))
	}

	v3, err := m.Publish(ctx, p.ID, PublishRequest{ChangeSummary: "restore v1"})
	if err != nil {
		t.Fatal(err)
	}
	if v3.Number != 3 {
		t.Errorf("post-restore Number = %d, want 3", v3.Number)
	}
	v1, _ := m.Get(ctx, p.ID, 1)
	if v3.ContentHash != v1.ContentHash {
		t.Errorf("restored content hash differs from v1")
	}
}

func TestRestore_Errors(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seed(t, store, clause("purpose", "x", 10))
	m := New(store, nil, nil)

	if _, err := m.Restore(ctx, p.ID, 1, "a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Restore(missing version) error = %v", err)
	}

	if _, err := m.Publish(ctx, p.ID, PublishRequest{}); err != nil {
		t.Fatal(err)
	}
	live, _ := store.GetPolicy(ctx, p.ID)
	live.Status = policy.StatusArchived
	if err := store.UpdatePolicy(ctx, live, live.Revision); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Restore(ctx, p.ID, 1, "a"); !errors.Is(err, ErrPolicyArchived) {
		t.Errorf("Restore(archived) error = %v", err)
	}
}

func TestPublish_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := seed(t, store, clause("purpose", "x", 10))
	m := New(store, &Config{MaxPublishRetries: 50, RetryBackoff: time.Millisecond}, nil)

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[int]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.Publish(ctx, p.ID, PublishRequest{})
			if err != nil {
				t.Errorf("Publish() error = %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if numbers[v.Number] {
				t.Errorf("version %d claimed twice", v.Number)
			}
			numbers[v.Number] = true
		}()
	}
	wg.Wait()

	for i := 1; i <= n; i++ {
		if !numbers[i] {
			t.Errorf("version %d missing", i)
		}
	}
}

// conflictStore loses every version race.
type conflictStore struct {
	*storage.MemoryStore
	attempts int
}

func (s *conflictStore) InsertVersion(ctx context.Context, v *policy.Version) error {
	s.attempts++
	return storage.ErrVersionConflict
}

func TestPublish_ContentionExhaustsRetries(t *testing.T) {
	ctx := context.Background()
	store := &conflictStore{MemoryStore: storage.NewMemoryStore()}
	p := seed(t, store, clause("purpose", "x", 10))
	m := New(store, &Config{MaxPublishRetries: 3}, nil)

	_, err := m.Publish(ctx, p.ID, PublishRequest{})
	if !errors.Is(err, ErrPublishContention) {
		t.Fatalf("Publish() error = %v, want ErrPublishContention", err)
	}
	if store.attempts != 4 {
		t.Errorf("attempts = %d, want 4", store.attempts)
	}
}

func TestCurrent_NoVersions(t *testing.T) {
	store := storage.NewMemoryStore()
	p := seed(t, store, clause("purpose", "x", 10))
	if _, err := New(store, nil, nil).Current(context.Background(), p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Current() error = %v, want ErrNotFound", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", *DefaultConfig(), false},
		{"no retries", Config{}, false},
		{"negative retries", Config{MaxPublishRetries: -1}, true},
		{"negative backoff", Config{RetryBackoff: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}
