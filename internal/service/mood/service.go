package mood

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/policy"
	"github.com/mindease/mindease-api/internal/repository"
)

const (
	DefaultDays = 30
	maxDays     = 365
)

type Service struct {
	repo repository.MoodRepository
	now  func() time.Time
}

func NewService(repo repository.MoodRepository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Record(ctx context.Context, actor policy.Actor, req *model.MoodEntryRequest) (*model.MoodEntry, error) {
	if err := policy.Authorize(actor, policy.ActionCreate, policy.Target{Resource: policy.ResourceMood, OwnerID: actor.ID}); err != nil {
		return nil, err
	}
	entry := &model.MoodEntry{
		ID:        uuid.NewString(),
		UserID:    actor.ID,
		Mood:      req.Mood,
		Energy:    req.Energy,
		Anxiety:   req.Anxiety,
		Notes:     req.Notes,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record mood: %w", err)
	}
	return entry, nil
}

// History returns the caller's entries from the last days days.
func (s *Service) History(ctx context.Context, actor policy.Actor, days int) ([]*model.MoodEntry, error) {
	days = clampDays(days)
	entries, err := s.repo.ListByUser(ctx, actor.ID, s.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("failed to list mood entries: %w", err)
	}
	if entries == nil {
		entries = []*model.MoodEntry{}
	}
	return entries, nil
}

func (s *Service) Stats(ctx context.Context, actor policy.Actor, days int) (*model.MoodStats, error) {
	days = clampDays(days)
	entries, err := s.History(ctx, actor, days)
	if err != nil {
		return nil, err
	}

	stats := &model.MoodStats{Days: days, Count: len(entries)}
	if len(entries) == 0 {
		return stats, nil
	}
	var mood, energy, anxiety int
	for _, e := range entries {
		mood += e.Mood
		energy += e.Energy
		anxiety += e.Anxiety
	}
	n := float64(len(entries))
	stats.AverageMood = round1(float64(mood) / n)
	stats.AverageEnergy = round1(float64(energy) / n)
	stats.AverageAnxiety = round1(float64(anxiety) / n)
	return stats, nil
}

func clampDays(days int) int {
	if days <= 0 {
		return DefaultDays
	}
	if days > maxDays {
		return maxDays
	}
	return days
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
