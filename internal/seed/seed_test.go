package seed_test

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	dbfs "github.com/garnizeh/skillswap/db"
	"github.com/garnizeh/skillswap/internal/db"
	"github.com/garnizeh/skillswap/internal/repository/sqlite"
	"github.com/garnizeh/skillswap/internal/seed"
	"github.com/garnizeh/skillswap/internal/swap"
	"github.com/garnizeh/skillswap/pkg/repository"
)

func setup(t *testing.T) (*sqlite.SQLiteRepo, *swap.Service) {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_").Replace(t.Name()))
	d, err := db.New(ctx, dsn, slog.Default())
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := sqlite.New(d, slog.Default())
	return repo, swap.NewService(repo, slog.Default())
}

func TestApplyDemoSeed(t *testing.T) {
	ctx := context.Background()
	repo, svc := setup(t)

	f, err := seed.Load(dbfs.SeedFiles, "seed")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(f.Users) == 0 || len(f.Swaps) == 0 {
		t.Fatalf("demo seed is empty: %d users, %d swaps", len(f.Users), len(f.Swaps))
	}

	res, err := seed.Apply(ctx, f, repo, svc, 4, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Users != len(f.Users) || res.Swaps != len(f.Swaps) {
		t.Fatalf("unexpected result %+v", res)
	}

	john, err := repo.GetByEmail(ctx, "john@example.com")
	if err != nil || john == nil {
		t.Fatalf("john: %v %v", john, err)
	}
	if !john.IsVerified || len(john.SkillsOffered) != 3 {
		t.Fatalf("unexpected john: verified=%v skills=%d", john.IsVerified, len(john.SkillsOffered))
	}

	stats, err := repo.SwapStats(ctx, time.Time{})
	if err != nil {
		t.Fatalf("SwapStats: %v", err)
	}
	if stats.CompletedSwaps != 1 || stats.AcceptedSwaps != 2 || stats.PendingSwaps != 1 {
		t.Fatalf("unexpected swap stats %+v", stats)
	}

	// re-running reuses the users
	res, err = seed.Apply(ctx, &seed.File{Users: f.Users}, repo, svc, 4, nil)
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if res.Users != 0 {
		t.Fatalf("expected no new users, got %d", res.Users)
	}
	users, total, err := repo.ListUsers(ctx, repository.UserFilter{Limit: 100})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if int(total) != len(f.Users) || len(users) != len(f.Users) {
		t.Fatalf("expected %d users, got %d", len(f.Users), total)
	}
}

func TestApplyRejectsBadSeeds(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown requester",
			yaml: `
users:
  - {name: A, email: a@example.com, password: secret1}
swaps:
  - {requester: ghost@example.com, recipient: a@example.com, requested_skill: {name: Go}, offered_skill: {name: Rust}}
`,
		},
		{
			name: "unknown status",
			yaml: `
users:
  - {name: A, email: a@example.com, password: secret1}
  - {name: B, email: b@example.com, password: secret1}
swaps:
  - {requester: a@example.com, recipient: b@example.com, requested_skill: {name: Go}, offered_skill: {name: Rust}, status: paused}
`,
		},
		{
			name: "missing password",
			yaml: `
users:
  - {name: A, email: a@example.com}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, svc := setup(t)
			fsys := fstest.MapFS{"seed/test.yaml": {Data: []byte(tt.yaml)}}

			f, err := seed.Load(fsys, "seed")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if _, err := seed.Apply(context.Background(), f, repo, svc, 4, nil); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
