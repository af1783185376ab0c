package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"studytrack-backend/internal/models"
	"studytrack-backend/internal/repository"
)

// AchievementMilestones are the completed-session counts that unlock an
// achievement notification.
var AchievementMilestones = []int{1, 5, 10, 25, 50, 100}

type CompletionStore interface {
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.StudySession, error)
	MarkCompleted(ctx context.Context, id, userID uuid.UUID) (bool, error)
	CountCompleted(ctx context.Context, userID uuid.UUID) (int, error)
}

type CompletionResult struct {
	Session *models.StudySession
	// Achievement is set when this completion reached a milestone.
	Achievement *models.Notification
}

// SessionCompleter marks sessions completed and awards milestone
// achievements.
type SessionCompleter struct {
	sessions CompletionStore
	emitter  *NotificationEmitter
}

func NewSessionCompleter(sessions CompletionStore, emitter *NotificationEmitter) *SessionCompleter {
	return &SessionCompleter{sessions: sessions, emitter: emitter}
}

// Complete moves the session to Completed. Only the call that changes the
// status checks milestones, so repeating it never awards twice.
func (c *SessionCompleter) Complete(ctx context.Context, userID, sessionID uuid.UUID) (*CompletionResult, error) {
	changed, err := c.sessions.MarkCompleted(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}

	session, err := c.sessions.GetForUser(ctx, sessionID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Study session not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	result := &CompletionResult{Session: session}
	if !changed {
		return result, nil
	}

	completed, err := c.sessions.CountCompleted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed sessions: %w", err)
	}
	if !isMilestone(completed) {
		return result, nil
	}

	title, message := achievementText(completed)
	n, _, err := c.emitter.Emit(ctx, userID, &session.ID, models.NotificationAchievement, title, message)
	if err != nil {
		return nil, err
	}
	result.Achievement = n
	return result, nil
}

func isMilestone(completed int) bool {
	for _, m := range AchievementMilestones {
		if completed == m {
			return true
		}
	}
	return false
}

func achievementText(completed int) (string, string) {
	plural := ""
	if completed > 1 {
		plural = "s"
	}
	title := fmt.Sprintf("Achievement Unlocked: %d Sessions Completed!", completed)
	message := fmt.Sprintf("Congratulations! You've completed %d study session%s. Keep up the great work!", completed, plural)
	return title, message
}
