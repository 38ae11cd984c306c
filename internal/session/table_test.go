package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/glimpse/internal/metrics"
)

func TestTable_OpenReplacesPerOrigin(t *testing.T) {
	table := NewTable(nil)

	first := table.Open("tab-1", "https://example.com/a")
	second := table.Open("tab-1", "https://example.com/b")
	table.Open("tab-2", "https://example.com/c")

	if first.ID == second.ID {
		t.Error("expected distinct ids")
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", table.Len())
	}
	got, ok := table.Get("tab-1")
	if !ok || got.Target != "https://example.com/b" {
		t.Errorf("expected latest preview kept, got %+v", got)
	}
}

func TestTable_CloseOrigin(t *testing.T) {
	table := NewTable(nil)
	table.Open("tab-1", "https://example.com/a")

	if !table.CloseOrigin("tab-1") {
		t.Error("expected session removed")
	}
	if table.CloseOrigin("tab-1") {
		t.Error("expected second close to be a no-op")
	}
	if table.Len() != 0 {
		t.Errorf("expected empty table, got %d", table.Len())
	}
}

func TestTable_CloseByID(t *testing.T) {
	table := NewTable(nil)
	a := table.Open("tab-1", "https://example.com/a")
	b := table.Open("tab-2", "https://example.com/b")

	if table.Close("tab-2", a.ID) {
		t.Error("expected id from another origin to be ignored")
	}
	if !table.Close("", a.ID) {
		t.Error("expected close by id without origin to succeed")
	}
	if !table.Close("tab-2", b.ID) {
		t.Error("expected close by origin and id to succeed")
	}
	if table.Len() != 0 {
		t.Errorf("expected empty table, got %d", table.Len())
	}
}

func TestTable_Expand(t *testing.T) {
	table := NewTable(nil)
	table.Open("tab-1", "https://example.com/a")

	target, err := table.Expand("tab-1")
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if target != "https://example.com/a" {
		t.Errorf("unexpected target %q", target)
	}

	if _, err := table.Expand("tab-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after expand, got %v", err)
	}
}

func TestTable_ListOrdered(t *testing.T) {
	table := NewTable(nil)
	table.Open("c", "https://example.com/1")
	table.Open("a", "https://example.com/2")
	table.Open("b", "https://example.com/3")

	list := table.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(list))
	}
	for i, origin := range []string{"c", "a", "b"} {
		if list[i].Origin != origin {
			t.Errorf("position %d: expected origin %s, got %s", i, origin, list[i].Origin)
		}
	}
}

func TestTable_ConcurrentOpen(t *testing.T) {
	table := NewTable(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			table.Open(string(rune('a'+i%5)), "https://example.com/")
		}(i)
	}
	wg.Wait()

	if table.Len() != 5 {
		t.Errorf("expected 5 origins, got %d", table.Len())
	}
	seen := map[string]bool{}
	for _, s := range table.List() {
		if seen[s.ID] {
			t.Errorf("duplicate id %s", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestTable_SessionGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	table := NewTable(m)

	table.Open("tab-1", "https://example.com/a")
	table.Open("tab-2", "https://example.com/b")
	table.CloseOrigin("tab-1")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var got float64 = -1
	for _, f := range families {
		if f.GetName() == "glimpse_sessions_current" {
			got = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	if got != 1 {
		t.Errorf("expected gauge 1, got %v", got)
	}
}
