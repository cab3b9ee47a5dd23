package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/questboard/questboard/internal/db"
	"github.com/questboard/questboard/internal/model"
	"github.com/questboard/questboard/internal/repository"
	"github.com/spf13/cobra"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		t.Fatalf("%s %v: %v\n%s", cmd.Use, args, err, out.String())
	}
	return out.String()
}

func TestMigrateAndRecompute(t *testing.T) {
	conn := filepath.Join(t.TempDir(), "cli.db") + "?_pragma=foreign_keys(1)"
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_CONNECTION", conn)

	out := run(t, MigrateCmd(), "up")
	if !strings.Contains(out, "schema version: 5") {
		t.Fatalf("migrate up output = %q", out)
	}

	database, err := db.Init("sqlite", conn)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = database.Close() }()

	ctx := context.Background()
	now := time.Now().UTC()
	user := &model.User{ID: uuid.New().String(), Email: "a@example.com", CreatedAt: now}
	profile := &model.Profile{Name: "Ada", IsPublic: true}
	if err := repository.NewUserRepository(database).Create(ctx, user, profile); err != nil {
		t.Fatal(err)
	}
	quest := &model.Quest{ID: uuid.New().String(), ProfileID: profile.ID, Title: "Q", Status: model.QuestStatusActive, CreatedAt: now, UpdatedAt: now}
	if err := repository.NewQuestRepository(database).Create(ctx, quest, nil); err != nil {
		t.Fatal(err)
	}
	target := 4.0
	kpi := &model.KPI{ID: uuid.New().String(), QuestID: quest.ID, Name: "k", Value: 4, Target: &target, CreatedAt: now, UpdatedAt: now}
	if err := repository.NewKPIRepository(database).CreateBatch(ctx, []*model.KPI{kpi}); err != nil {
		t.Fatal(err)
	}

	out = run(t, ProgressCmd(), "recompute")
	if !strings.Contains(out, "quests updated: 1") {
		t.Fatalf("recompute output = %q", out)
	}

	stored, err := repository.NewQuestRepository(database).Get(ctx, quest.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Progress != 100 || stored.Status != model.QuestStatusCompleted {
		t.Fatalf("stored = %d/%s, want 100/completed", stored.Progress, stored.Status)
	}

	out = run(t, ProgressCmd(), "recompute", "--quest", quest.ID)
	if !strings.Contains(out, "quests updated: 0") {
		t.Fatalf("second recompute output = %q", out)
	}
}
