package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/yndnr/acctledger/internal/core/domain"
	"github.com/yndnr/acctledger/internal/storage/kv"
	"github.com/yndnr/acctledger/internal/storage/wal"
	"github.com/yndnr/acctledger/pkg/hashing"
)

// faultyBackend fails Set for keys starting with failPrefix, calling
// onFail first when set.
type faultyBackend struct {
	kv.Backend
	failPrefix string
	onFail     func()
}

func (f *faultyBackend) Set(ctx context.Context, key string, value []byte) error {
	if f.failPrefix != "" && strings.HasPrefix(key, f.failPrefix) {
		if f.onFail != nil {
			f.onFail()
		}
		return fmt.Errorf("injected failure for %s", key)
	}
	return f.Backend.Set(ctx, key, value)
}

func newFileStore(t *testing.T, opts ...StoreOption) (*AccountStore, *kv.FileBackend) {
	t.Helper()
	b, err := kv.NewFileBackend(kv.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return NewAccountStore(b, hashing.Blake2b, opts...), b
}

// putNamed stores a fresh account and then gives it alias, so the
// alias index entry is written.
func putNamed(t *testing.T, s *AccountStore, identity, alias string) *domain.Account {
	t.Helper()
	ctx := context.Background()
	acc := domain.NewAccount(identity)
	if err := s.Put(ctx, acc); err != nil {
		t.Fatalf("Put(%s) failed: %v", identity, err)
	}
	if alias != "" {
		acc.Alias = alias
		if err := s.Put(ctx, acc); err != nil {
			t.Fatalf("Put(%s, alias %q) failed: %v", identity, alias, err)
		}
	}
	return acc
}

func TestAccountStore_PutGetRoundTrip(t *testing.T) {
	s, b := newFileStore(t)
	ctx := context.Background()

	acc := domain.NewAccount("pk1")
	acc.Balance = 500
	acc.Locked = 7
	acc.Level = 2
	_ = acc.AddAccessKey("spend", "k1")
	acc.AccessKeys[1].Allowance = 40

	if err := s.Put(ctx, acc); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if acc.Version != 1 {
		t.Errorf("Version after first Put = %d, want 1", acc.Version)
	}

	got, err := s.Get(ctx, "pk1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Equal(acc) {
		t.Errorf("Get = %+v, want %+v", got, acc)
	}

	data, err := os.ReadFile(filepath.Join(b.Dir(), "accounts", "pk1.account"))
	if err != nil {
		t.Fatalf("record file missing: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if raw["public_key"] != "pk1" {
		t.Errorf("public_key = %v, want pk1", raw["public_key"])
	}
}

func TestAccountStore_Get(t *testing.T) {
	s, b := newFileStore(t)
	ctx := context.Background()

	accounts := filepath.Join(b.Dir(), "accounts")
	if err := os.MkdirAll(accounts, 0o750); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(accounts, "broken.account"), []byte("{not json"), 0o600)
	os.WriteFile(filepath.Join(accounts, "empty.account"), []byte("{}"), 0o600)
	os.WriteFile(filepath.Join(accounts, "moved.account"), []byte(`{"public_key":"other"}`), 0o600)

	tests := []struct {
		identity string
		wantErr  error
	}{
		{"missing", domain.ErrAccountNotFound},
		{"", domain.ErrAccountNotFound},
		{"../escape", domain.ErrAccountNotFound},
		{"broken", domain.ErrCorruptRecord},
		{"empty", domain.ErrAccountNotFound},
		{"moved", domain.ErrCorruptRecord},
	}

	for _, tt := range tests {
		t.Run(tt.identity, func(t *testing.T) {
			_, err := s.Get(ctx, tt.identity)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Get(%q) err = %v, want %v", tt.identity, err, tt.wantErr)
			}
		})
	}
}

func TestAccountStore_Put_VersionConflict(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()

	acc := domain.NewAccount("pk1")
	if err := s.Put(ctx, acc); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	stale, _ := s.Get(ctx, "pk1")
	acc.Balance = 10
	if err := s.Put(ctx, acc); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	stale.Balance = 99
	if err := s.Put(ctx, stale); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("stale Put err = %v, want ErrVersionConflict", err)
	}

	fresh := domain.NewAccount("pk1")
	if err := s.Put(ctx, fresh); !errors.Is(err, domain.ErrVersionConflict) {
		t.Errorf("Put of new account over existing err = %v, want ErrVersionConflict", err)
	}

	got, _ := s.Get(ctx, "pk1")
	if got.Balance != 10 {
		t.Errorf("Balance = %d, want 10", got.Balance)
	}
}

func TestAccountStore_Put_Rejects(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Put(nil) err = %v", err)
	}
	if err := s.Put(ctx, domain.NewAccount("a/b")); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Put(a/b) err = %v", err)
	}
	acc := domain.NewAccount("pk1")
	acc.Alias = strings.Repeat("x", domain.MaxAliasLength+1)
	if err := s.Put(ctx, acc); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Put(long alias) err = %v", err)
	}
}

func TestAccountStore_AliasIndex(t *testing.T) {
	s, b := newFileStore(t)
	ctx := context.Background()

	acc := domain.NewAccount("pk1")
	acc.Alias = "alice"
	if err := s.Put(ctx, acc); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	// A record that did not exist before is never indexed.
	if _, err := s.GetByAlias(ctx, "alice"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("GetByAlias after create err = %v, want ErrAccountNotFound", err)
	}

	acc.Alias = "alicia"
	if err := s.Put(ctx, acc); err != nil {
		t.Fatalf("rename Put failed: %v", err)
	}
	got, err := s.GetByAlias(ctx, "alicia")
	if err != nil {
		t.Fatalf("GetByAlias failed: %v", err)
	}
	if got.Identity != "pk1" {
		t.Errorf("Identity = %q, want pk1", got.Identity)
	}

	name := hashing.Blake2b("alicia") + ".uname"
	data, err := os.ReadFile(filepath.Join(b.Dir(), "usernames", name))
	if err != nil {
		t.Fatalf("index file missing: %v", err)
	}
	if string(data) != "pk1" {
		t.Errorf("index content = %q, want pk1", data)
	}

	// Saving without an alias change leaves the index alone.
	acc.Balance = 5
	if err := s.Put(ctx, acc); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := s.GetByAlias(ctx, "alicia"); err != nil {
		t.Errorf("GetByAlias after balance change failed: %v", err)
	}
}

func TestAccountStore_GetByAlias_NotFound(t *testing.T) {
	s, b := newFileStore(t)
	ctx := context.Background()

	acc := putNamed(t, s, "pk1", "alice")
	acc.Alias = "bob"
	if err := s.Put(ctx, acc); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := b.Set(ctx, s.AliasKey("ghost"), []byte("nobody")); err != nil {
		t.Fatal(err)
	}

	for _, alias := range []string{"", "unknown", "alice", "ghost"} {
		t.Run(alias, func(t *testing.T) {
			if _, err := s.GetByAlias(ctx, alias); !errors.Is(err, domain.ErrAccountNotFound) {
				t.Errorf("GetByAlias(%q) err = %v, want ErrAccountNotFound", alias, err)
			}
		})
	}

	if got, err := s.GetByAlias(ctx, "bob"); err != nil || got.Identity != "pk1" {
		t.Errorf("GetByAlias(bob) = %v, %v", got, err)
	}
}

func TestAccountStore_AliasTaken(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()

	alice := putNamed(t, s, "pk1", "alice")
	other := putNamed(t, s, "pk2", "")

	other.Alias = "alice"
	err := s.Put(ctx, other)
	if !errors.Is(err, domain.ErrAliasTaken) {
		t.Fatalf("Put err = %v, want ErrAliasTaken", err)
	}
	if other.Version != 1 {
		t.Errorf("rejected Put changed Version to %d", other.Version)
	}

	// Once the owner moves away the alias can be claimed.
	alice.Alias = "alice2"
	if err := s.Put(ctx, alice); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, other); err != nil {
		t.Fatalf("claim after release failed: %v", err)
	}
	got, err := s.GetByAlias(ctx, "alice")
	if err != nil || got.Identity != "pk2" {
		t.Errorf("GetByAlias(alice) = %v, %v, want pk2", got, err)
	}
}

func TestAccountStore_AliasTaken_OnCreate(t *testing.T) {
	s, b := newFileStore(t)
	ctx := context.Background()

	putNamed(t, s, "pkA", "alice")

	fresh := domain.NewAccount("pkB")
	fresh.Alias = "alice"
	if err := s.Put(ctx, fresh); !errors.Is(err, domain.ErrAliasTaken) {
		t.Fatalf("Put err = %v, want ErrAliasTaken", err)
	}
	if fresh.Version != 0 {
		t.Errorf("rejected Put changed Version to %d", fresh.Version)
	}
	if _, err := s.Get(ctx, "pkB"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Get(pkB) err = %v, want ErrAccountNotFound", err)
	}

	// A free alias on a new record is accepted but not indexed.
	carol := domain.NewAccount("pkC")
	carol.Alias = "carol"
	if err := s.Put(ctx, carol); err != nil {
		t.Fatalf("Put(pkC) failed: %v", err)
	}
	if _, err := b.Get(ctx, s.AliasKey("carol")); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Errorf("index entry for carol: err = %v, want ErrKeyNotFound", err)
	}

	got, err := s.GetByAlias(ctx, "alice")
	if err != nil || got.Identity != "pkA" {
		t.Errorf("GetByAlias(alice) = %v, %v, want pkA", got, err)
	}
}

func TestAccountStore_Put_IOFailure(t *testing.T) {
	tests := []struct {
		name       string
		failPrefix string
		wantAlias  bool
	}{
		{"index write fails", AliasNamespace + "/", false},
		{"record write fails", AccountsNamespace + "/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fb, err := kv.NewFileBackend(kv.DefaultConfig(t.TempDir()))
			if err != nil {
				t.Fatal(err)
			}
			defer fb.Close()

			seed := NewAccountStore(fb, hashing.Blake2b)
			acc := domain.NewAccount("pk1")
			if err := seed.Put(ctx, acc); err != nil {
				t.Fatal(err)
			}

			walDir := t.TempDir()
			w, err := wal.NewWriter(wal.DefaultConfig(walDir))
			if err != nil {
				t.Fatal(err)
			}
			s := NewAccountStore(&faultyBackend{Backend: fb, failPrefix: tt.failPrefix}, hashing.Blake2b, WithWAL(w))

			acc.Alias = "alice"
			err = s.Put(ctx, acc)
			if !errors.Is(err, domain.ErrIO) {
				t.Fatalf("Put err = %v, want ErrIO", err)
			}
			if errors.Is(err, ErrIntentUnresolved) {
				t.Errorf("Put err = %v, abort was logged", err)
			}
			if acc.Version != 1 {
				t.Errorf("Version = %d, want unchanged 1", acc.Version)
			}

			got, _ := seed.Get(ctx, "pk1")
			if got.Alias != "" || got.Version != 1 {
				t.Errorf("stored record changed: %+v", got)
			}
			_, aliasErr := fb.Get(ctx, seed.AliasKey("alice"))
			if (aliasErr == nil) != tt.wantAlias {
				t.Errorf("index entry present = %v, want %v", aliasErr == nil, tt.wantAlias)
			}

			w.Close()
			entries, _ := readWAL(t, walDir)
			if len(entries) != 2 || entries[1].OpType != wal.OpTypeAbort {
				t.Fatalf("wal = %v, want intent and abort", opTypes(entries))
			}
			if len(wal.Unresolved(entries)) != 0 {
				t.Error("aborted intent is unresolved")
			}
		})
	}
}

func TestAccountStore_Put_AbortNotLogged(t *testing.T) {
	ctx := context.Background()
	fb, err := kv.NewFileBackend(kv.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	defer fb.Close()

	walDir := t.TempDir()
	w, err := wal.NewWriter(wal.DefaultConfig(walDir))
	if err != nil {
		t.Fatal(err)
	}
	// The WAL goes away between the intent and the abort.
	backend := &faultyBackend{Backend: fb, failPrefix: AccountsNamespace + "/", onFail: func() { w.Close() }}
	s := NewAccountStore(backend, hashing.Blake2b, WithWAL(w))

	err = s.Put(ctx, domain.NewAccount("pk1"))
	if !errors.Is(err, domain.ErrIO) {
		t.Fatalf("Put err = %v, want ErrIO", err)
	}
	if !errors.Is(err, ErrIntentUnresolved) {
		t.Errorf("Put err = %v, want ErrIntentUnresolved", err)
	}

	entries, _ := readWAL(t, walDir)
	if len(wal.Unresolved(entries)) != 1 {
		t.Errorf("wal = %v, want one unresolved intent", opTypes(entries))
	}
}

func TestAccountStore_Put_LogsIntentAndCommit(t *testing.T) {
	walDir := t.TempDir()
	w, err := wal.NewWriter(wal.DefaultConfig(walDir))
	if err != nil {
		t.Fatal(err)
	}
	s, _ := newFileStore(t, WithWAL(w))

	acc := putNamed(t, s, "pk1", "alice")
	w.Close()

	entries, _ := readWAL(t, walDir)
	want := []wal.OpType{wal.OpTypeIntent, wal.OpTypeCommit, wal.OpTypeIntent, wal.OpTypeCommit}
	if got := opTypes(entries); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("wal = %v, want %v", got, want)
	}
	if entries[0].AliasKey != "" {
		t.Errorf("create intent AliasKey = %q, want empty", entries[0].AliasKey)
	}
	if entries[2].AliasKey != s.AliasKey("alice") {
		t.Errorf("rename intent AliasKey = %q", entries[2].AliasKey)
	}
	if entries[2].Account.Version != acc.Version {
		t.Errorf("intent version = %d, want %d", entries[2].Account.Version, acc.Version)
	}
}

func TestAccountStore_Update(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()
	putNamed(t, s, "pk1", "")

	got, err := s.Update(ctx, "pk1", func(acc *domain.Account) error {
		return acc.Credit(100, "")
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Balance != 100 || got.Version != 2 {
		t.Errorf("Update = balance %d version %d, want 100 and 2", got.Balance, got.Version)
	}

	_, err = s.Update(ctx, "pk1", func(acc *domain.Account) error {
		return acc.Debit(500, "")
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("Update err = %v, want ErrInsufficientBalance", err)
	}
	stored, _ := s.Get(ctx, "pk1")
	if stored.Balance != 100 || stored.Version != 2 {
		t.Errorf("failed Update wrote: %+v", stored)
	}

	_, err = s.Update(ctx, "pk1", func(acc *domain.Account) error {
		acc.Identity = "pk2"
		return nil
	})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("identity change err = %v, want ErrInvalidArgument", err)
	}

	if _, err := s.Update(ctx, "missing", func(*domain.Account) error { return nil }); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Update(missing) err = %v, want ErrAccountNotFound", err)
	}
}

func TestAccountStore_Update_Concurrent(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()
	putNamed(t, s, "pk1", "")

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "pk1", func(acc *domain.Account) error {
				return acc.Credit(3, "")
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Update failed: %v", err)
	}

	got, _ := s.Get(ctx, "pk1")
	if got.Balance != 3*workers {
		t.Errorf("Balance = %d, want %d", got.Balance, 3*workers)
	}
	if got.Version != workers+1 {
		t.Errorf("Version = %d, want %d", got.Version, workers+1)
	}
}

func TestAccountStore_Scan(t *testing.T) {
	s, b := newFileStore(t)
	ctx := context.Background()

	for _, id := range []string{"pk1", "pk2", "pk3"} {
		putNamed(t, s, id, "")
	}
	os.WriteFile(filepath.Join(b.Dir(), "accounts", "bad.account"), []byte("garbage"), 0o600)

	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(All) = %d, want 3", len(all))
	}

	seen := 0
	if err := s.Scan(ctx, func(*domain.Account) bool {
		seen++
		return false
	}); err != nil {
		t.Fatal(err)
	}
	if seen != 1 {
		t.Errorf("Scan visited %d after stop, want 1", seen)
	}
}

func TestAccountStore_VerifyAliasIndex(t *testing.T) {
	s, b := newFileStore(t)
	ctx := context.Background()

	putNamed(t, s, "pk1", "alice")
	moved := putNamed(t, s, "pk2", "bob")
	moved.Alias = "robert"
	if err := s.Put(ctx, moved); err != nil {
		t.Fatal(err)
	}
	if err := b.Set(ctx, s.AliasKey("ghost"), []byte("nobody")); err != nil {
		t.Fatal(err)
	}

	report, err := s.VerifyAliasIndex(ctx, false)
	if err != nil {
		t.Fatalf("VerifyAliasIndex failed: %v", err)
	}
	if report.Checked != 4 {
		t.Errorf("Checked = %d, want 4", report.Checked)
	}
	reasons := map[string]string{}
	for _, issue := range report.Issues {
		reasons[issue.Identity] = issue.Reason
	}
	if len(reasons) != 2 || reasons["nobody"] != IssueDangling || reasons["pk2"] != IssueStale {
		t.Errorf("Issues = %+v", report.Issues)
	}
	if report.Repaired != 0 {
		t.Errorf("Repaired = %d without repair", report.Repaired)
	}

	// Verification never heals on its own.
	if _, err := b.Get(ctx, s.AliasKey("ghost")); err != nil {
		t.Errorf("dry run removed entry: %v", err)
	}

	report, err = s.VerifyAliasIndex(ctx, true)
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	if report.Repaired != 2 {
		t.Errorf("Repaired = %d, want 2", report.Repaired)
	}

	report, _ = s.VerifyAliasIndex(ctx, false)
	if report.Checked != 2 || len(report.Issues) != 0 {
		t.Errorf("after repair = %+v", report)
	}
	for alias, id := range map[string]string{"alice": "pk1", "robert": "pk2"} {
		if got, err := s.GetByAlias(ctx, alias); err != nil || got.Identity != id {
			t.Errorf("GetByAlias(%s) = %v, %v", alias, got, err)
		}
	}
}

func TestAccountStore_RestoreAccount(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()

	backup := domain.NewAccount("pk1")
	backup.Alias = "alice"
	backup.Balance = 70
	backup.Version = 9

	if err := s.RestoreAccount(ctx, backup); err != nil {
		t.Fatalf("RestoreAccount into empty store failed: %v", err)
	}
	got, err := s.GetByAlias(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByAlias failed: %v", err)
	}
	if got.Balance != 70 || got.Version != 1 {
		t.Errorf("restored = balance %d version %d, want 70 and 1", got.Balance, got.Version)
	}

	if _, err := s.Update(ctx, "pk1", func(acc *domain.Account) error { return acc.Credit(5, "") }); err != nil {
		t.Fatal(err)
	}
	if err := s.RestoreAccount(ctx, backup); err != nil {
		t.Fatalf("RestoreAccount over existing failed: %v", err)
	}
	got, _ = s.Get(ctx, "pk1")
	if got.Balance != 70 || got.Version != 3 {
		t.Errorf("restored = balance %d version %d, want 70 and 3", got.Balance, got.Version)
	}
}

func readWAL(t *testing.T, dir string) ([]*wal.Entry, int) {
	t.Helper()
	r, err := wal.NewReader(dir)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()
	entries, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	return entries, r.Truncated
}

func opTypes(entries []*wal.Entry) []wal.OpType {
	out := make([]wal.OpType, len(entries))
	for i, e := range entries {
		out[i] = e.OpType
	}
	return out
}
