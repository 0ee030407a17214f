package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func TestMirrorReplace(t *testing.T) {
	m := New()
	entries := []core.Entry{{ID: 1, Activity: core.Expense, Amount: decimal.NewFromInt(5), Currency: core.USD}}
	if err := m.Replace(context.Background(), entries); err != nil {
		t.Fatalf("replace: %v", err)
	}
	entries[0].ID = 99

	got := m.Entries()
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("mirror not isolated from caller: %+v", got)
	}

	if err := m.Replace(context.Background(), nil); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(m.Entries()) != 0 || m.Replaces() != 2 {
		t.Fatalf("unexpected state: %+v, %d replaces", m.Entries(), m.Replaces())
	}
}
