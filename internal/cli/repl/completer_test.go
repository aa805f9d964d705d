package repl

import (
	"reflect"
	"testing"
)

func TestCompleter(t *testing.T) {
	c := NewCompleter([]string{"transfer debit", "account", "transfer credit", "transfer"})

	tests := []struct {
		prefix string
		want   []string
	}{
		{"transfer ", []string{"transfer credit", "transfer debit"}},
		{"acc", []string{"account"}},
		{"h", []string{"help", "history"}},
		{"zzz", nil},
	}
	for _, tt := range tests {
		if got := c.Complete(tt.prefix); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Complete(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}

	if !c.Known("transfer") || !c.Known("exit") {
		t.Error("Known() false for listed command")
	}
	if c.Known("trans") {
		t.Error("Known(trans) = true")
	}
}
