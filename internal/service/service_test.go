package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/questboard/questboard/internal/db/dbtest"
	"github.com/questboard/questboard/internal/model"
	"github.com/questboard/questboard/internal/repository"
	"github.com/questboard/questboard/internal/storage"
)

type fixture struct {
	db        *sqlx.DB
	users     repository.UserRepository
	profiles  repository.ProfileRepository
	quests    repository.QuestRepository
	kpis      repository.KPIRepository
	follows   repository.FollowRepository
	auth      *AuthService
	account   *UserService
	profile   *ProfileService
	quest     *QuestService
	follow    *FollowService
	dashboard *DashboardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithDB(t, dbtest.Open(t))
}

func newFixtureWithDB(t *testing.T, database *sqlx.DB) *fixture {
	t.Helper()

	local, err := storage.NewLocalStorage(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}

	fx := &fixture{
		db:       database,
		users:    repository.NewUserRepository(database),
		profiles: repository.NewProfileRepository(database),
		quests:   repository.NewQuestRepository(database),
		kpis:     repository.NewKPIRepository(database),
		follows:  repository.NewFollowRepository(database),
	}

	email := NewEmailService("", "noreply@example.com", "http://localhost:8090", "Questboard", true)
	files := NewFileService(repository.NewFileRepository(database), local)

	fx.auth = NewAuthService(fx.users, email, "test-secret", time.Hour, false, true)
	fx.account = NewUserService(fx.users, fx.profiles, files, email)
	fx.profile = NewProfileService(fx.profiles, fx.quests, fx.follows, files)
	fx.quest = NewQuestService(fx.quests, fx.kpis, fx.profiles, fx.users, email)
	fx.follow = NewFollowService(fx.profiles, fx.follows, fx.users, email)
	fx.dashboard = NewDashboardService(fx.quests, fx.kpis, fx.follows, 20)

	return fx
}

func (fx *fixture) signup(t *testing.T, email, name string) (*model.User, *model.Profile) {
	t.Helper()
	ctx := context.Background()

	user, err := fx.auth.Signup(ctx, SignupInput{Email: email, Password: "correct-horse-battery", Name: name})
	if err != nil {
		t.Fatalf("Signup(%s): %v", email, err)
	}
	profile, err := fx.profiles.ByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("profile for %s: %v", email, err)
	}
	return user, profile
}

func (fx *fixture) newQuest(t *testing.T, profileID, title string) *QuestDetail {
	t.Helper()
	quest, err := fx.quest.Create(context.Background(), profileID, QuestInput{Title: title})
	if err != nil {
		t.Fatalf("Create quest: %v", err)
	}
	return quest
}

func isValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

func TestSignupCreatesPublicProfile(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	user, profile := fx.signup(t, "Ada@Example.com", "Ada")
	if user.Email != "ada@example.com" {
		t.Errorf("email = %q, want lowercased", user.Email)
	}
	if profile.Name != "Ada" || !profile.IsPublic {
		t.Errorf("profile = %+v, want public profile named Ada", profile)
	}

	_, err := fx.auth.Signup(ctx, SignupInput{Email: "ada@example.com", Password: "correct-horse-battery", Name: "Other"})
	if !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("duplicate signup err = %v, want ErrEmailAlreadyExists", err)
	}

	_, err = fx.auth.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong-password-123"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad login err = %v, want ErrInvalidCredentials", err)
	}

	got, err := fx.auth.Login(ctx, LoginInput{Email: "ADA@example.com", Password: "correct-horse-battery"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("login returned user %s, want %s", got.ID, user.ID)
	}
}

func TestSignupRejectsMissingFields(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.auth.Signup(context.Background(), SignupInput{Email: "a@example.com"})
	if !isValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestJWTRoundTrip(t *testing.T) {
	fx := newFixture(t)
	user, _ := fx.signup(t, "jwt@example.com", "Jay")

	token, expiry, err := fx.auth.GenerateJWT(user)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	if time.Until(expiry) <= 0 {
		t.Fatalf("expiry %v is not in the future", expiry)
	}

	id, err := fx.auth.UserIDFromToken(token)
	if err != nil {
		t.Fatalf("UserIDFromToken: %v", err)
	}
	if id != user.ID {
		t.Fatalf("user id = %q, want %q", id, user.ID)
	}

	_, err = fx.auth.UserIDFromToken(token + "x")
	if err == nil {
		t.Fatal("tampered token accepted")
	}
}

func TestCreateQuestRejectsInvalidStatus(t *testing.T) {
	fx := newFixture(t)
	_, profile := fx.signup(t, "a@example.com", "Ada")

	_, err := fx.quest.Create(context.Background(), profile.ID, QuestInput{Title: "Run", Status: "done"})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}

	quests, err := fx.quests.Quests(context.Background(), profile.ID, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(quests) != 0 {
		t.Fatalf("quest written despite invalid status: %d rows", len(quests))
	}
}

func TestCreateQuestWithKPIs(t *testing.T) {
	fx := newFixture(t)
	_, profile := fx.signup(t, "a@example.com", "Ada")

	detail, err := fx.quest.Create(context.Background(), profile.ID, QuestInput{
		Title:       "Read books",
		Description: "**twelve** a year",
		KPIs: []KPIInput{
			{Name: "Books", Value: 3, Target: f(12)},
			{Name: "  "},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if detail.Progress != 25 {
		t.Errorf("progress = %d, want 25", detail.Progress)
	}
	if len(detail.KPIs) != 1 {
		t.Errorf("kpis = %d, want 1 (blank dropped)", len(detail.KPIs))
	}
	if !strings.Contains(detail.DescriptionHTML, "<strong>twelve</strong>") {
		t.Errorf("description html = %q", detail.DescriptionHTML)
	}
	if !detail.IsOwner {
		t.Error("creator should own the quest")
	}
}

func TestAddKPIsRecomputesProgress(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, profile := fx.signup(t, "a@example.com", "Ada")
	quest := fx.newQuest(t, profile.ID, "Run a marathon")

	result, err := fx.quest.AddKPIs(ctx, profile.ID, quest.ID, []KPIInput{{Name: "Distance", Value: 50, Target: f(100)}})
	if err != nil {
		t.Fatalf("AddKPIs: %v", err)
	}
	if result.Progress != 50 {
		t.Errorf("progress = %d, want 50", result.Progress)
	}
	if result.Status != model.QuestStatusActive {
		t.Errorf("status = %q, want active", result.Status)
	}

	stored, err := fx.quests.Get(ctx, quest.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Progress != 50 {
		t.Errorf("stored progress = %d, want 50", stored.Progress)
	}
}

func TestAddKPIsAllBlankWritesNothing(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, profile := fx.signup(t, "a@example.com", "Ada")
	quest := fx.newQuest(t, profile.ID, "Run")

	_, err := fx.quest.AddKPIs(ctx, profile.ID, quest.ID, []KPIInput{{Name: ""}, {Name: "   "}})
	if !errors.Is(err, ErrNoValidKPIs) {
		t.Fatalf("err = %v, want ErrNoValidKPIs", err)
	}

	kpis, err := fx.kpis.KPIs(ctx, quest.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(kpis) != 0 {
		t.Fatalf("%d kpis written, want 0", len(kpis))
	}
}

func TestCompletionIsOneWay(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, profile := fx.signup(t, "a@example.com", "Ada")
	quest := fx.newQuest(t, profile.ID, "Pushups")

	result, err := fx.quest.AddKPIs(ctx, profile.ID, quest.ID, []KPIInput{{Name: "Reps", Value: 100, Target: f(100)}})
	if err != nil {
		t.Fatalf("AddKPIs: %v", err)
	}
	if result.Progress != 100 || result.Status != model.QuestStatusCompleted {
		t.Fatalf("result = %d/%s, want 100/completed", result.Progress, result.Status)
	}

	lower := 40.0
	result, err = fx.quest.UpdateKPI(ctx, profile.ID, quest.ID, result.KPIs[0].ID, KPIUpdate{Value: &lower})
	if err != nil {
		t.Fatalf("UpdateKPI: %v", err)
	}
	if result.Progress != 40 {
		t.Errorf("progress = %d, want 40", result.Progress)
	}
	if result.Status != model.QuestStatusCompleted {
		t.Errorf("status = %q, want completed to stick", result.Status)
	}
}

func TestUpdateKPIClearTarget(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, profile := fx.signup(t, "a@example.com", "Ada")
	quest := fx.newQuest(t, profile.ID, "Study")

	result, err := fx.quest.AddKPIs(ctx, profile.ID, quest.ID, []KPIInput{
		{Name: "Chapters", Value: 1, Target: f(4)},
		{Name: "Exercises", Value: 3, Target: f(4)},
	})
	if err != nil {
		t.Fatalf("AddKPIs: %v", err)
	}
	kpiID := result.KPIs[0].ID

	value := 2.0
	result, err = fx.quest.UpdateKPI(ctx, profile.ID, quest.ID, kpiID, KPIUpdate{Value: &value})
	if err != nil {
		t.Fatalf("UpdateKPI: %v", err)
	}
	if result.Progress != 63 {
		t.Errorf("progress = %d, want 63 with the target untouched", result.Progress)
	}

	result, err = fx.quest.UpdateKPI(ctx, profile.ID, quest.ID, kpiID, KPIUpdate{ClearTarget: true})
	if err != nil {
		t.Fatalf("UpdateKPI clear: %v", err)
	}
	if result.Progress != 75 {
		t.Errorf("progress = %d, want 75 once the cleared kpi stops counting", result.Progress)
	}

	stored, err := fx.kpis.ByID(ctx, quest.ID, kpiID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Target != nil {
		t.Errorf("target = %v, want nil", *stored.Target)
	}
}

func TestCreateCompletedQuestSendsEmail(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, profile := fx.signup(t, "a@example.com", "Ada")

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	_, err := fx.quest.Create(ctx, profile.ID, QuestInput{
		Title: "Halfway",
		KPIs:  []KPIInput{{Name: "Pages", Value: 50, Target: f(100)}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if strings.Contains(logs.String(), "type=quest_completed") {
		t.Fatal("completion email sent for a quest at 50%")
	}

	detail, err := fx.quest.Create(ctx, profile.ID, QuestInput{
		Title: "Done already",
		KPIs:  []KPIInput{{Name: "Pages", Value: 100, Target: f(100)}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if detail.Status != model.QuestStatusCompleted {
		t.Fatalf("status = %q, want completed", detail.Status)
	}
	if !strings.Contains(logs.String(), "type=quest_completed") {
		t.Errorf("no completion email logged:\n%s", logs.String())
	}
}

func TestDeleteKPIRecomputes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, profile := fx.signup(t, "a@example.com", "Ada")
	quest := fx.newQuest(t, profile.ID, "Study")

	result, err := fx.quest.AddKPIs(ctx, profile.ID, quest.ID, []KPIInput{
		{Name: "Chapters", Value: 1, Target: f(4)},
		{Name: "Exercises", Value: 3, Target: f(4)},
	})
	if err != nil {
		t.Fatalf("AddKPIs: %v", err)
	}
	if result.Progress != 50 {
		t.Fatalf("progress = %d, want 50", result.Progress)
	}

	var chapters string
	for _, k := range result.KPIs {
		if k.Name == "Chapters" {
			chapters = k.ID
		}
	}

	result, err = fx.quest.DeleteKPI(ctx, profile.ID, quest.ID, chapters)
	if err != nil {
		t.Fatalf("DeleteKPI: %v", err)
	}
	if result.Progress != 75 || len(result.KPIs) != 1 {
		t.Fatalf("after delete = %d%% with %d kpis, want 75%% with 1", result.Progress, len(result.KPIs))
	}

	_, err = fx.quest.DeleteKPI(ctx, profile.ID, quest.ID, chapters)
	if !IsNotFound(err) {
		t.Fatalf("second delete err = %v, want not found", err)
	}
}

func TestQuestOwnership(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, owner := fx.signup(t, "owner@example.com", "Owner")
	_, other := fx.signup(t, "other@example.com", "Other")
	quest := fx.newQuest(t, owner.ID, "Mine")

	title := "Stolen"
	_, err := fx.quest.Update(ctx, other.ID, quest.ID, QuestUpdate{Title: &title})
	if !IsNotFound(err) {
		t.Errorf("update by non-owner err = %v, want not found", err)
	}

	err = fx.quest.Delete(ctx, other.ID, quest.ID)
	if !IsNotFound(err) {
		t.Errorf("delete by non-owner err = %v, want not found", err)
	}

	_, err = fx.quest.AddKPIs(ctx, other.ID, quest.ID, []KPIInput{{Name: "x"}})
	if !IsNotFound(err) {
		t.Errorf("add kpis by non-owner err = %v, want not found", err)
	}

	detail, err := fx.quest.Get(ctx, other.ID, quest.ID)
	if err != nil {
		t.Fatalf("public quest Get: %v", err)
	}
	if detail.IsOwner {
		t.Error("viewer reported as owner")
	}
}

func TestUpdateQuestStatus(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, profile := fx.signup(t, "a@example.com", "Ada")
	quest := fx.newQuest(t, profile.ID, "Swim")

	bad := "finished"
	_, err := fx.quest.Update(ctx, profile.ID, quest.ID, QuestUpdate{Status: &bad})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}

	paused := model.QuestStatusPaused
	detail, err := fx.quest.Update(ctx, profile.ID, quest.ID, QuestUpdate{Status: &paused})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if detail.Status != paused || detail.Title != "Swim" {
		t.Fatalf("detail = %s/%s, want Swim/paused", detail.Title, detail.Status)
	}

	quests, err := fx.quest.Quests(ctx, profile.ID, "", model.QuestStatusPaused)
	if err != nil {
		t.Fatal(err)
	}
	if len(quests) != 1 {
		t.Fatalf("paused quests = %d, want 1", len(quests))
	}

	_, err = fx.quest.Quests(ctx, profile.ID, "", "bogus")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("filter err = %v, want ErrInvalidStatus", err)
	}
}

func TestRecomputeAll(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, profile := fx.signup(t, "a@example.com", "Ada")
	quest := fx.newQuest(t, profile.ID, "Drift")

	_, err := fx.quest.AddKPIs(ctx, profile.ID, quest.ID, []KPIInput{{Name: "Steps", Value: 1, Target: f(2)}})
	if err != nil {
		t.Fatal(err)
	}

	err = fx.quests.UpdateProgress(ctx, quest.ID, 0, model.QuestStatusActive)
	if err != nil {
		t.Fatal(err)
	}

	changed, err := fx.quest.RecomputeAll(ctx)
	if err != nil {
		t.Fatalf("RecomputeAll: %v", err)
	}
	if changed != 1 {
		t.Errorf("changed = %d, want 1", changed)
	}

	changed, err = fx.quest.RecomputeAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if changed != 0 {
		t.Errorf("second pass changed = %d, want 0", changed)
	}
}

func TestFollowToggle(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, ada := fx.signup(t, "ada@example.com", "Ada")
	_, bob := fx.signup(t, "bob@example.com", "Bob")

	state, err := fx.follow.Toggle(ctx, ada, bob.ID)
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if !state.Following || state.FollowerCount != 1 || state.FollowingCount != 1 {
		t.Fatalf("after follow = %+v", state)
	}

	state, err = fx.follow.Toggle(ctx, ada, bob.ID)
	if err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	if state.Following || state.FollowerCount != 0 || state.FollowingCount != 0 {
		t.Fatalf("after unfollow = %+v", state)
	}
}

func TestFollowRejectsSelfAndUnknown(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, ada := fx.signup(t, "ada@example.com", "Ada")

	_, err := fx.follow.Toggle(ctx, ada, ada.ID)
	if !errors.Is(err, ErrCannotFollowSelf) {
		t.Errorf("self follow err = %v", err)
	}

	_, err = fx.follow.Toggle(ctx, ada, "")
	if !isValidation(err) {
		t.Errorf("empty target err = %v, want validation error", err)
	}

	_, err = fx.follow.Toggle(ctx, ada, "missing")
	if !IsNotFound(err) {
		t.Errorf("unknown target err = %v, want not found", err)
	}
}

func TestPrivateProfileHidden(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner, ownerProfile := fx.signup(t, "owner@example.com", "Owner")
	_, viewer := fx.signup(t, "viewer@example.com", "Viewer")
	quest := fx.newQuest(t, ownerProfile.ID, "Secret")

	private := false
	_, _, err := fx.profile.Update(ctx, owner.ID, ProfileUpdate{IsPublic: &private})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	_, err = fx.profile.View(ctx, viewer.ID, ownerProfile.ID)
	if !errors.Is(err, ErrProfilePrivate) {
		t.Errorf("View err = %v, want ErrProfilePrivate", err)
	}
	_, err = fx.quest.Get(ctx, viewer.ID, quest.ID)
	if !errors.Is(err, ErrProfilePrivate) {
		t.Errorf("quest Get err = %v, want ErrProfilePrivate", err)
	}
	_, err = fx.quest.ProfileQuests(ctx, viewer.ID, ownerProfile.ID, "")
	if !errors.Is(err, ErrProfilePrivate) {
		t.Errorf("ProfileQuests err = %v, want ErrProfilePrivate", err)
	}
	_, err = fx.profile.Followers(ctx, viewer.ID, ownerProfile.ID)
	if !errors.Is(err, ErrProfilePrivate) {
		t.Errorf("Followers err = %v, want ErrProfilePrivate", err)
	}

	view, err := fx.profile.View(ctx, ownerProfile.ID, ownerProfile.ID)
	if err != nil {
		t.Fatalf("owner View: %v", err)
	}
	if !view.IsOwner || view.Stats.QuestCount != 1 {
		t.Fatalf("owner view = %+v", view)
	}
}

func TestProfileViewStats(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, ada := fx.signup(t, "ada@example.com", "Ada")
	_, bob := fx.signup(t, "bob@example.com", "Bob")

	q := fx.newQuest(t, bob.ID, "Climb")
	_, err := fx.quest.AddKPIs(ctx, bob.ID, q.ID, []KPIInput{{Name: "Peaks", Value: 1, Target: f(2)}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = fx.follow.Toggle(ctx, ada, bob.ID)
	if err != nil {
		t.Fatal(err)
	}

	view, err := fx.profile.View(ctx, ada.ID, bob.ID)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if !view.IsFollowing || view.IsOwner {
		t.Errorf("view flags = following %v owner %v", view.IsFollowing, view.IsOwner)
	}
	want := model.ProfileStats{FollowerCount: 1, QuestCount: 1, AverageProgress: 50}
	if view.Stats != want {
		t.Errorf("stats = %+v, want %+v", view.Stats, want)
	}
}

func TestProfileUpdate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	user, _ := fx.signup(t, "a@example.com", "Ada")

	branch := "Computer Science"
	year := 3
	github := "https://github.com/ada"
	profile, warning, err := fx.profile.Update(ctx, user.ID, ProfileUpdate{Branch: &branch, Year: &year, GitHubURL: &github})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if warning != "" {
		t.Errorf("unexpected warning %q", warning)
	}
	if profile.Branch == nil || *profile.Branch != branch || profile.Year == nil || *profile.Year != 3 {
		t.Errorf("profile = %+v", profile)
	}

	stored, err := fx.profiles.ByUserID(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.GitHubURL == nil || *stored.GitHubURL != github {
		t.Errorf("stored github url = %v", stored.GitHubURL)
	}

	tooOld := 11
	_, _, err = fx.profile.Update(ctx, user.ID, ProfileUpdate{Year: &tooOld})
	if !isValidation(err) {
		t.Errorf("year 11 err = %v, want validation error", err)
	}

	badURL := "not a url"
	_, _, err = fx.profile.Update(ctx, user.ID, ProfileUpdate{WebsiteURL: &badURL})
	if !isValidation(err) {
		t.Errorf("bad url err = %v, want validation error", err)
	}

	badAvatar := "/etc/passwd"
	_, _, err = fx.profile.Update(ctx, user.ID, ProfileUpdate{AvatarURL: &badAvatar})
	if !isValidation(err) {
		t.Errorf("bad avatar err = %v, want validation error", err)
	}

	padded := "  https://example.com/ada  "
	cleared := ""
	profile, _, err = fx.profile.Update(ctx, user.ID, ProfileUpdate{WebsiteURL: &padded, GitHubURL: &cleared})
	if err != nil {
		t.Fatalf("Update links: %v", err)
	}
	if profile.WebsiteURL == nil || *profile.WebsiteURL != "https://example.com/ada" {
		t.Errorf("website url = %v, want trimmed", profile.WebsiteURL)
	}
	if profile.GitHubURL != nil {
		t.Errorf("github url = %q, want cleared", *profile.GitHubURL)
	}
}

func TestProfileUpdateWithoutOptionalColumns(t *testing.T) {
	database := dbtest.Open(t)
	for _, col := range repository.OptionalProfileColumns {
		_, err := database.Exec(`ALTER TABLE profiles DROP COLUMN ` + col)
		if err != nil {
			t.Fatalf("drop %s: %v", col, err)
		}
	}
	fx := newFixtureWithDB(t, database)
	ctx := context.Background()
	user, _ := fx.signup(t, "a@example.com", "Ada")

	name := "Ada Lovelace"
	section := "B"
	profile, warning, err := fx.profile.Update(ctx, user.ID, ProfileUpdate{Name: &name, Section: &section})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if warning != "some profile fields could not be saved: section" {
		t.Errorf("warning = %q", warning)
	}
	if profile.Name != name {
		t.Errorf("name = %q, want %q", profile.Name, name)
	}
	if profile.Section != nil {
		t.Errorf("section = %q, want nil from reloaded row", *profile.Section)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	ada, adaProfile := fx.signup(t, "ada@example.com", "Ada")
	_, bob := fx.signup(t, "bob@example.com", "Bob")

	q := fx.newQuest(t, adaProfile.ID, "Gone soon")
	_, err := fx.quest.AddKPIs(ctx, adaProfile.ID, q.ID, []KPIInput{{Name: "k", Value: 1, Target: f(2)}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = fx.follow.Toggle(ctx, bob, adaProfile.ID)
	if err != nil {
		t.Fatal(err)
	}

	err = fx.account.DeleteAccount(ctx, ada.ID)
	if err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	_, err = fx.users.ByID(ctx, ada.ID)
	if !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("user lookup err = %v, want ErrUserNotFound", err)
	}
	_, err = fx.profiles.ByID(ctx, adaProfile.ID)
	if !errors.Is(err, repository.ErrProfileNotFound) {
		t.Errorf("profile lookup err = %v, want ErrProfileNotFound", err)
	}
	_, err = fx.quests.Get(ctx, q.ID)
	if !errors.Is(err, repository.ErrQuestNotFound) {
		t.Errorf("quest lookup err = %v, want ErrQuestNotFound", err)
	}

	for table, want := range map[string]int{"kpis": 0, "follows": 0} {
		var n int
		err := fx.db.Get(&n, `SELECT COUNT(*) FROM `+table)
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Errorf("%s rows = %d, want %d", table, n, want)
		}
	}

	count, err := fx.follows.FollowingCount(ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("bob following = %d, want 0", count)
	}
}

func TestDashboardAndFeed(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, ada := fx.signup(t, "ada@example.com", "Ada")
	bobUser, bob := fx.signup(t, "bob@example.com", "Bob")
	_, cat := fx.signup(t, "cat@example.com", "Cat")

	fx.newQuest(t, bob.ID, "Bob one")
	fx.newQuest(t, bob.ID, "Bob two")
	fx.newQuest(t, cat.ID, "Cat hidden")

	archived, err := fx.quest.Create(ctx, bob.ID, QuestInput{Title: "Bob archived", Status: model.QuestStatusArchived})
	if err != nil {
		t.Fatal(err)
	}

	for _, target := range []string{bob.ID, cat.ID} {
		_, err := fx.follow.Toggle(ctx, ada, target)
		if err != nil {
			t.Fatal(err)
		}
	}

	private := false
	_, _, err = fx.profile.Update(ctx, bobUser.ID, ProfileUpdate{Name: strPtr("Bob")})
	if err != nil {
		t.Fatal(err)
	}
	catUser, err := fx.users.ByEmail(ctx, "cat@example.com")
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = fx.profile.Update(ctx, catUser.ID, ProfileUpdate{IsPublic: &private})
	if err != nil {
		t.Fatal(err)
	}

	feed, err := fx.dashboard.Feed(ctx, ada.ID, 0)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("feed = %d items, want 2", len(feed))
	}
	for _, item := range feed {
		if item.OwnerName != "Bob" {
			t.Errorf("feed item owner = %q, want Bob", item.OwnerName)
		}
		if item.ID == archived.ID {
			t.Error("archived quest in feed")
		}
	}

	feed, err = fx.dashboard.Feed(ctx, ada.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 1 {
		t.Fatalf("limited feed = %d items, want 1", len(feed))
	}

	d, err := fx.dashboard.Dashboard(ctx, bob.ID)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.TotalQuests != 3 || d.Quests.Active != 2 || d.Quests.Archived != 1 || d.FollowerCount != 1 {
		t.Fatalf("dashboard = %+v", d)
	}

	d, err = fx.dashboard.Dashboard(ctx, ada.ID)
	if err != nil {
		t.Fatal(err)
	}
	if d.FollowingCount != 2 || d.TotalQuests != 0 || d.AverageProgress != 0 {
		t.Fatalf("ada dashboard = %+v", d)
	}
}

func strPtr(s string) *string { return &s }

// unavailableStorage fails every Save while down is set.
type unavailableStorage struct {
	storage.Storage
	down bool
}

func (s *unavailableStorage) Save(ctx context.Context, path string, file io.Reader) error {
	if s.down {
		return errors.New("bucket unavailable")
	}
	return s.Storage.Save(ctx, path, file)
}

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func uploadPNG(t *testing.T, svc *ProfileService, userID string) (*model.Profile, error) {
	t.Helper()
	data := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	header := &multipart.FileHeader{Filename: "me.png", Size: int64(len(data))}
	return svc.UploadAvatar(context.Background(), userID, "image/png", memFile{bytes.NewReader(data)}, header)
}

func TestUploadAvatarKeepsPreviousUntilReplaced(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	user, _ := fx.signup(t, "a@example.com", "Ada")

	root := t.TempDir()
	local, err := storage.NewLocalStorage(root, "/uploads")
	if err != nil {
		t.Fatal(err)
	}
	store := &unavailableStorage{Storage: local}
	fileRepo := repository.NewFileRepository(fx.db)
	svc := NewProfileService(fx.profiles, fx.quests, fx.follows, NewFileService(fileRepo, store))

	first, err := uploadPNG(t, svc, user.ID)
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	firstFile, err := fileRepo.FileByType(ctx, model.FileOwnerProfile, first.ID, model.FileTypeAvatar)
	if err != nil {
		t.Fatal(err)
	}

	store.down = true
	_, err = uploadPNG(t, svc, user.ID)
	if err == nil {
		t.Fatal("upload succeeded with storage down")
	}
	store.down = false

	stored, err := fx.profiles.ByUserID(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.AvatarURL != first.AvatarURL {
		t.Fatalf("avatar url = %q, want %q", stored.AvatarURL, first.AvatarURL)
	}
	_, err = fileRepo.ByID(ctx, firstFile.ID)
	if err != nil {
		t.Fatalf("previous avatar record gone after failed upload: %v", err)
	}
	_, err = os.Stat(filepath.Join(root, firstFile.StoragePath))
	if err != nil {
		t.Fatalf("previous avatar object gone after failed upload: %v", err)
	}

	second, err := uploadPNG(t, svc, user.ID)
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if second.AvatarURL == first.AvatarURL {
		t.Fatal("avatar url unchanged after replacement")
	}
	_, err = fileRepo.ByID(ctx, firstFile.ID)
	if !errors.Is(err, repository.ErrFileNotFound) {
		t.Errorf("replaced avatar record err = %v, want ErrFileNotFound", err)
	}
	_, err = os.Stat(filepath.Join(root, firstFile.StoragePath))
	if !os.IsNotExist(err) {
		t.Errorf("replaced avatar object still on disk: %v", err)
	}

	// A profile write that fails leaves the current avatar and drops the new upload.
	_, err = fx.db.Exec(`ALTER TABLE profiles DROP COLUMN avatar_url`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = uploadPNG(t, svc, user.ID)
	if err == nil {
		t.Fatal("upload succeeded without an avatar_url column")
	}
	files, err := fileRepo.AllUserFiles(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].StoragePath == firstFile.StoragePath {
		t.Fatalf("files after failed profile write = %d, want only the current avatar", len(files))
	}
}
