package history

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T, maxEntries int) *Store {
	t.Helper()
	s, err := Open(Options{Dir: t.TempDir(), MaxEntries: maxEntries})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndRecent(t *testing.T) {
	s := openTestStore(t, 0)

	texts := []string{"first", "second", "third"}
	for _, text := range texts {
		if _, err := s.Save(text, "en"); err != nil {
			t.Fatalf("Save(%q): %v", text, err)
		}
		time.Sleep(time.Millisecond) // distinct timestamps
	}

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	// Newest first.
	want := []string{"third", "second", "first"}
	for i, w := range want {
		if entries[i].Text != w {
			t.Errorf("entries[%d].Text = %q, want %q", i, entries[i].Text, w)
		}
		if entries[i].ID == "" {
			t.Errorf("entries[%d] has empty ID", i)
		}
	}
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t, 0)

	for i := 0; i < 5; i++ {
		if _, err := s.Save("entry", ""); err != nil {
			t.Fatalf("Save: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	entries, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t, 3)

	for i := 0; i < 6; i++ {
		if _, err := s.Save("entry", ""); err != nil {
			t.Fatalf("Save: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Errorf("count after prune = %d, want 3", count)
	}
}

func TestEmptyStore(t *testing.T) {
	s := openTestStore(t, 0)

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want empty", entries)
	}
}
