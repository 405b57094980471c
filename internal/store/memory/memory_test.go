package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkhub/internal/domain"
	"github.com/MrSnakeDoc/linkhub/internal/store"
)

func TestNew(t *testing.T) {
	s := New()
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.Count() != 0 {
		t.Errorf("New() should start empty, got %d rows", s.Count())
	}
}

func TestInsertAndSelect(t *testing.T) {
	ctx := context.Background()
	s := New()

	row := store.Row{
		Username: "alice",
		UserID:   "U1",
		Links:    []domain.LinkRecord{{ID: "1", Title: "Site", URL: "https://a.com"}},
		Theme:    domain.ThemeDark,
	}
	if err := s.Insert(ctx, row); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	rows, err := s.SelectByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("SelectByUsername() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("SelectByUsername() returned %d rows, want 1", len(rows))
	}
	if rows[0].CreatedAt.IsZero() {
		t.Error("Insert() should stamp CreatedAt")
	}
	if rows[0].Links[0].Title != "Site" {
		t.Errorf("SelectByUsername() links = %+v", rows[0].Links)
	}

	missing, err := s.SelectByUsername(ctx, "bob")
	if err != nil || len(missing) != 0 {
		t.Errorf("SelectByUsername(bob) = %v, %v, want empty", missing, err)
	}
}

func TestInsertDuplicate(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Insert(ctx, store.Row{Username: "alice", UserID: "U1"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	err := s.Insert(ctx, store.Row{Username: "alice", UserID: "U2"})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("second Insert() error = %v, want ErrDuplicate", err)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestUpdateByUsernameScopesToOwner(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Insert(ctx, store.Row{Username: "alice", UserID: "U1", Theme: domain.ThemeLight})

	links := []domain.LinkRecord{{ID: "1", Title: "New", URL: "https://n.com"}}
	if err := s.UpdateByUsername(ctx, "alice", "U2", store.Patch{Links: &links}); !errors.Is(err, store.ErrNoRows) {
		t.Fatalf("UpdateByUsername() by non-owner = %v, want ErrNoRows", err)
	}

	theme := domain.ThemeGreen
	if err := s.UpdateByUsername(ctx, "alice", "U1", store.Patch{Links: &links, Theme: &theme}); err != nil {
		t.Fatalf("UpdateByUsername() error = %v", err)
	}

	rows, _ := s.SelectByUsername(ctx, "alice")
	if len(rows[0].Links) != 1 || rows[0].Theme != domain.ThemeGreen {
		t.Errorf("UpdateByUsername() not applied, got %+v", rows[0])
	}

	if err := s.UpdateByUsername(ctx, "ghost", "U1", store.Patch{Links: &links}); !errors.Is(err, store.ErrNoRows) {
		t.Errorf("UpdateByUsername(ghost) = %v, want ErrNoRows", err)
	}
}

func TestSelectByUserIDNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = s.Insert(ctx, store.Row{Username: "old", UserID: "U1", CreatedAt: base})
	_ = s.Insert(ctx, store.Row{Username: "new", UserID: "U1", CreatedAt: base.Add(time.Hour)})
	_ = s.Insert(ctx, store.Row{Username: "other", UserID: "U2", CreatedAt: base})

	rows, err := s.SelectByUserID(ctx, "U1")
	if err != nil {
		t.Fatalf("SelectByUserID() error = %v", err)
	}
	if len(rows) != 2 || rows[0].Username != "new" || rows[1].Username != "old" {
		t.Errorf("SelectByUserID() = %+v, want [new old]", rows)
	}
}

func TestSelectReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Insert(ctx, store.Row{
		Username: "alice",
		UserID:   "U1",
		Links:    []domain.LinkRecord{{ID: "1", Title: "Site", URL: "https://a.com"}},
	})

	rows, _ := s.SelectByUsername(ctx, "alice")
	rows[0].Links[0].Title = "mutated"

	again, _ := s.SelectByUsername(ctx, "alice")
	if again[0].Links[0].Title != "Site" {
		t.Error("SelectByUsername() should return copies of stored links")
	}
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Insert(ctx, store.Row{Username: "alice", UserID: "U1"})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.SelectByUsername(ctx, "alice")
		}()
		go func() {
			defer wg.Done()
			theme := domain.ThemeDark
			_ = s.UpdateByUsername(ctx, "alice", "U1", store.Patch{Theme: &theme})
		}()
	}
	wg.Wait()

	rows, _ := s.SelectByUsername(ctx, "alice")
	if rows[0].Theme != domain.ThemeDark {
		t.Errorf("Theme = %v, want dark", rows[0].Theme)
	}
}
