package repl

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestHistory_Add(t *testing.T) {
	h := NewHistory("")
	h.Add("a")
	h.Add("a")
	h.Add("b")

	if got := len(h.Entries()); got != 2 {
		t.Fatalf("len = %d, want 2", got)
	}
	if got := h.Get(0); got != "b" {
		t.Errorf("Get(0) = %q, want b", got)
	}
	if got := h.Get(1); got != "a" {
		t.Errorf("Get(1) = %q, want a", got)
	}
	if got := h.Get(2); got != "" {
		t.Errorf("Get(2) = %q, want empty", got)
	}
	if got := h.Get(-1); got != "" {
		t.Errorf("Get(-1) = %q, want empty", got)
	}
}

func TestHistory_MaxSize(t *testing.T) {
	h := NewHistory("")
	for i := 0; i < DefaultHistorySize+10; i++ {
		h.Add(fmt.Sprintf("cmd %d", i))
	}

	entries := h.Entries()
	if len(entries) != DefaultHistorySize {
		t.Fatalf("len = %d, want %d", len(entries), DefaultHistorySize)
	}
	if entries[0] != "cmd 10" {
		t.Errorf("oldest = %q, want cmd 10", entries[0])
	}
}

func TestHistory_LoadMissing(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "none"))
	if err := h.Load(); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if len(h.Entries()) != 0 {
		t.Errorf("entries = %v", h.Entries())
	}
}

func TestHistory_LoadSkipsBlank(t *testing.T) {
	file := filepath.Join(t.TempDir(), "history")
	if err := os.WriteFile(file, []byte("one\n\ntwo\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	h := NewHistory(file)
	if err := h.Load(); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if got := h.Entries(); len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("Entries() = %v", got)
	}
}

func TestHistory_InMemory(t *testing.T) {
	h := NewHistory("")
	h.Add("x")
	if err := h.Save(); err != nil {
		t.Errorf("Save() = %v", err)
	}
	if err := h.Load(); err != nil {
		t.Errorf("Load() = %v", err)
	}
}
