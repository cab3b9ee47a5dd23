package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/questboard/questboard/internal/markdown"
	"github.com/questboard/questboard/internal/model"
	"github.com/questboard/questboard/internal/repository"
	"github.com/questboard/questboard/internal/validation"
)

type KPIInput struct {
	Name   string   `json:"name"`
	Value  float64  `json:"value"`
	Target *float64 `json:"target"`
	Unit   *string  `json:"unit"`
}

type QuestInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	KPIs        []KPIInput `json:"kpis"`
}

// QuestUpdate leaves nil fields untouched.
type QuestUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// KPIUpdate leaves nil fields untouched. A JSON null target reads as
// absent, so removing a target takes ClearTarget.
type KPIUpdate struct {
	Name        *string  `json:"name"`
	Value       *float64 `json:"value"`
	Target      *float64 `json:"target"`
	ClearTarget bool     `json:"clearTarget"`
	Unit        *string  `json:"unit"`
}

// QuestDetail is a quest with everything needed to render it.
type QuestDetail struct {
	*model.Quest
	KPIs            []*model.KPI `json:"kpis"`
	DescriptionHTML string       `json:"descriptionHtml"`
	IsOwner         bool         `json:"isOwner"`
}

// KPIResult reports a quest's KPIs after a change together with the
// recomputed progress.
type KPIResult struct {
	KPIs     []*model.KPI `json:"kpis"`
	Progress int          `json:"progress"`
	Status   string       `json:"status"`
}

type QuestService struct {
	questRepo    repository.QuestRepository
	kpiRepo      repository.KPIRepository
	profileRepo  repository.ProfileRepository
	userRepo     repository.UserRepository
	emailService *EmailService
}

func NewQuestService(
	questRepo repository.QuestRepository,
	kpiRepo repository.KPIRepository,
	profileRepo repository.ProfileRepository,
	userRepo repository.UserRepository,
	emailService *EmailService,
) *QuestService {
	return &QuestService{
		questRepo:    questRepo,
		kpiRepo:      kpiRepo,
		profileRepo:  profileRepo,
		userRepo:     userRepo,
		emailService: emailService,
	}
}

func (s *QuestService) Create(ctx context.Context, profileID string, input QuestInput) (*QuestDetail, error) {
	title := validation.Normalize(input.Title)
	description := validation.Normalize(input.Description)

	err := validation.ValidateTitle(title)
	if err != nil {
		return nil, invalid(err)
	}
	err = validation.ValidateDescription(description)
	if err != nil {
		return nil, invalid(err)
	}

	status := input.Status
	if status == "" {
		status = model.QuestStatusActive
	}
	if !model.ValidQuestStatus(status) {
		return nil, ErrInvalidStatus
	}

	now := time.Now().UTC()
	quest := &model.Quest{
		ID:          uuid.New().String(),
		ProfileID:   profileID,
		Title:       title,
		Description: description,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	kpis, err := buildKPIs(quest.ID, input.KPIs, false)
	if err != nil {
		return nil, err
	}
	applyProgress(quest, kpis)

	err = s.questRepo.Create(ctx, quest, kpis)
	if err != nil {
		return nil, fmt.Errorf("failed to create quest: %w", err)
	}

	slog.Info("quest created", "quest_id", quest.ID, "profile_id", profileID, "kpis", len(kpis))

	// Starting at 100% counts as reaching completion.
	if quest.Progress >= 100 {
		s.notifyCompleted(ctx, quest)
	}
	return s.detail(quest, kpis, true)
}

// Quests lists the quests owned by profileID.
func (s *QuestService) Quests(ctx context.Context, profileID, sortBy, status string) ([]*model.Quest, error) {
	if status != "" && !model.ValidQuestStatus(status) {
		return nil, ErrInvalidStatus
	}
	return s.questRepo.Quests(ctx, profileID, sortBy, status)
}

// ProfileQuests lists another profile's quests, honouring its visibility.
func (s *QuestService) ProfileQuests(ctx context.Context, viewerProfileID, profileID, sortBy string) ([]*model.Quest, error) {
	err := s.checkVisible(ctx, viewerProfileID, profileID)
	if err != nil {
		return nil, err
	}
	return s.questRepo.Quests(ctx, profileID, sortBy, "")
}

// Get returns a quest to its owner, or to anyone when the owner is public.
func (s *QuestService) Get(ctx context.Context, viewerProfileID, questID string) (*QuestDetail, error) {
	quest, err := s.questRepo.Get(ctx, questID)
	if err != nil {
		return nil, err
	}

	err = s.checkVisible(ctx, viewerProfileID, quest.ProfileID)
	if err != nil {
		return nil, err
	}

	kpis, err := s.kpiRepo.KPIs(ctx, quest.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load kpis: %w", err)
	}

	return s.detail(quest, kpis, quest.ProfileID == viewerProfileID)
}

func (s *QuestService) Update(ctx context.Context, profileID, questID string, input QuestUpdate) (*QuestDetail, error) {
	quest, err := s.questRepo.ByID(ctx, profileID, questID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := validation.Normalize(*input.Title)
		err = validation.ValidateTitle(title)
		if err != nil {
			return nil, invalid(err)
		}
		quest.Title = title
	}
	if input.Description != nil {
		description := validation.Normalize(*input.Description)
		err = validation.ValidateDescription(description)
		if err != nil {
			return nil, invalid(err)
		}
		quest.Description = description
	}
	if input.Status != nil {
		if !model.ValidQuestStatus(*input.Status) {
			return nil, ErrInvalidStatus
		}
		quest.Status = *input.Status
	}

	err = s.questRepo.Update(ctx, quest)
	if err != nil {
		return nil, err
	}

	kpis, err := s.kpiRepo.KPIs(ctx, quest.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load kpis: %w", err)
	}

	return s.detail(quest, kpis, true)
}

func (s *QuestService) Delete(ctx context.Context, profileID, questID string) error {
	err := s.questRepo.Delete(ctx, profileID, questID)
	if err != nil {
		return err
	}

	slog.Info("quest deleted", "quest_id", questID, "profile_id", profileID)
	return nil
}

// AddKPIs inserts every entry with a non-blank name in one transaction and
// recomputes the quest's progress from its full KPI set.
func (s *QuestService) AddKPIs(ctx context.Context, profileID, questID string, inputs []KPIInput) (*KPIResult, error) {
	quest, err := s.questRepo.ByID(ctx, profileID, questID)
	if err != nil {
		return nil, err
	}

	kpis, err := buildKPIs(quest.ID, inputs, true)
	if err != nil {
		return nil, err
	}

	err = s.kpiRepo.CreateBatch(ctx, kpis)
	if err != nil {
		return nil, fmt.Errorf("failed to create kpis: %w", err)
	}

	return s.recompute(ctx, quest)
}

func (s *QuestService) UpdateKPI(ctx context.Context, profileID, questID, kpiID string, input KPIUpdate) (*KPIResult, error) {
	quest, err := s.questRepo.ByID(ctx, profileID, questID)
	if err != nil {
		return nil, err
	}

	kpi, err := s.kpiRepo.ByID(ctx, quest.ID, kpiID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := validation.Normalize(*input.Name)
		err = validateKPIName(name)
		if err != nil {
			return nil, err
		}
		kpi.Name = name
	}
	if input.Value != nil {
		kpi.Value = *input.Value
	}
	if input.ClearTarget {
		kpi.Target = nil
	} else if input.Target != nil {
		kpi.Target = input.Target
	}
	if input.Unit != nil {
		unit, err := normalizeUnit(input.Unit)
		if err != nil {
			return nil, err
		}
		kpi.Unit = unit
	}

	err = s.kpiRepo.Update(ctx, kpi)
	if err != nil {
		return nil, err
	}

	return s.recompute(ctx, quest)
}

func (s *QuestService) DeleteKPI(ctx context.Context, profileID, questID, kpiID string) (*KPIResult, error) {
	quest, err := s.questRepo.ByID(ctx, profileID, questID)
	if err != nil {
		return nil, err
	}

	err = s.kpiRepo.Delete(ctx, quest.ID, kpiID)
	if err != nil {
		return nil, err
	}

	return s.recompute(ctx, quest)
}

// RecomputeAll rewrites the stored progress of every quest from its KPIs.
// It returns how many quests changed.
func (s *QuestService) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := s.questRepo.AllIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list quests: %w", err)
	}

	changed := 0
	for _, id := range ids {
		n, err := s.RecomputeQuest(ctx, id)
		if err != nil {
			return changed, err
		}
		changed += n
	}

	return changed, nil
}

// RecomputeQuest reports 1 when the stored progress or status changed.
func (s *QuestService) RecomputeQuest(ctx context.Context, questID string) (int, error) {
	quest, err := s.questRepo.Get(ctx, questID)
	if err != nil {
		return 0, err
	}

	progress, status := quest.Progress, quest.Status
	_, err = s.recompute(ctx, quest)
	if err != nil {
		return 0, err
	}

	if quest.Progress != progress || quest.Status != status {
		return 1, nil
	}
	return 0, nil
}

func (s *QuestService) recompute(ctx context.Context, quest *model.Quest) (*KPIResult, error) {
	kpis, err := s.kpiRepo.KPIs(ctx, quest.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load kpis: %w", err)
	}

	previousStatus := quest.Status
	applyProgress(quest, kpis)

	err = s.questRepo.UpdateProgress(ctx, quest.ID, quest.Progress, quest.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}

	if previousStatus != model.QuestStatusCompleted && quest.Status == model.QuestStatusCompleted {
		s.notifyCompleted(ctx, quest)
	}

	return &KPIResult{KPIs: kpis, Progress: quest.Progress, Status: quest.Status}, nil
}

func (s *QuestService) notifyCompleted(ctx context.Context, quest *model.Quest) {
	profile, err := s.profileRepo.ByID(ctx, quest.ProfileID)
	if err != nil {
		slog.Warn("failed to load profile for completion email", "error", err, "quest_id", quest.ID)
		return
	}
	user, err := s.userRepo.ByID(ctx, profile.UserID)
	if err != nil {
		slog.Warn("failed to load user for completion email", "error", err, "quest_id", quest.ID)
		return
	}

	err = s.emailService.SendQuestCompletedEmail(ctx, user.Email, profile.Name, quest.Title, quest.ID)
	if err != nil {
		slog.Warn("failed to send quest completed email", "error", err, "quest_id", quest.ID)
	}
}

func (s *QuestService) checkVisible(ctx context.Context, viewerProfileID, ownerProfileID string) error {
	if viewerProfileID == ownerProfileID {
		return nil
	}

	owner, err := s.profileRepo.ByID(ctx, ownerProfileID)
	if err != nil {
		return err
	}
	if !owner.IsPublic {
		return ErrProfilePrivate
	}

	return nil
}

func (s *QuestService) detail(quest *model.Quest, kpis []*model.KPI, isOwner bool) (*QuestDetail, error) {
	html, err := markdown.RenderString(quest.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to render description: %w", err)
	}
	if kpis == nil {
		kpis = []*model.KPI{}
	}

	return &QuestDetail{
		Quest:           quest,
		KPIs:            kpis,
		DescriptionHTML: html,
		IsOwner:         isOwner,
	}, nil
}

// buildKPIs drops entries whose name is blank. With requireOne set, a batch
// with nothing left is rejected.
func buildKPIs(questID string, inputs []KPIInput, requireOne bool) ([]*model.KPI, error) {
	now := time.Now().UTC()
	kpis := make([]*model.KPI, 0, len(inputs))

	for _, in := range inputs {
		name := validation.Normalize(in.Name)
		if name == "" {
			continue
		}
		err := validateKPIName(name)
		if err != nil {
			return nil, err
		}
		unit, err := normalizeUnit(in.Unit)
		if err != nil {
			return nil, err
		}

		kpis = append(kpis, &model.KPI{
			ID:        uuid.New().String(),
			QuestID:   questID,
			Name:      name,
			Value:     in.Value,
			Target:    in.Target,
			Unit:      unit,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if requireOne && len(kpis) == 0 {
		return nil, ErrNoValidKPIs
	}

	return kpis, nil
}

func validateKPIName(name string) error {
	if name == "" {
		return invalidf("kpi name is required")
	}
	if len([]rune(name)) > validation.MaxKPINameLength {
		return invalidf("kpi name must not exceed %d characters", validation.MaxKPINameLength)
	}
	return nil
}

func normalizeUnit(unit *string) (*string, error) {
	if unit == nil {
		return nil, nil
	}
	u := validation.Normalize(*unit)
	if u == "" {
		return nil, nil
	}
	if len([]rune(u)) > validation.MaxUnitLength {
		return nil, invalidf("unit must not exceed %d characters", validation.MaxUnitLength)
	}
	return &u, nil
}
