package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pairlink-inc/pairlink-engine/pkg/apperrors"
	"github.com/pairlink-inc/pairlink-engine/pkg/models"
	"github.com/pairlink-inc/pairlink-engine/pkg/repositories"
)

// TestState is a session together with the calling user's own responses,
// so a client can resume a half-finished test.
type TestState struct {
	Session   *models.Session    `json:"session"`
	Role      models.Role        `json:"role"`
	Responses []*models.Response `json:"responses"`
}

// SessionService manages compatibility test sessions. A session is tied 1:1
// to a relationship; starting one requires the relationship to be accepted,
// but an existing session survives the relationship ending and can still be
// resumed and scored.
type SessionService interface {
	// StartOrResume returns the session for the relationship, creating it if
	// the relationship is accepted and no session exists yet.
	StartOrResume(ctx context.Context, relationshipID, userID uuid.UUID) (*models.Session, error)

	// State returns the session plus the calling user's own responses.
	State(ctx context.Context, relationshipID, userID uuid.UUID) (*TestState, error)

	// Questions returns the static question list.
	Questions(ctx context.Context) ([]*models.TestQuestion, error)
}

type sessionService struct {
	relationships repositories.RelationshipRepository
	sessions      repositories.SessionRepository
	responses     repositories.ResponseRepository
	questions     repositories.QuestionRepository
	logger        *zap.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(
	relationships repositories.RelationshipRepository,
	sessions repositories.SessionRepository,
	responses repositories.ResponseRepository,
	questions repositories.QuestionRepository,
	logger *zap.Logger,
) SessionService {
	return &sessionService{
		relationships: relationships,
		sessions:      sessions,
		responses:     responses,
		questions:     questions,
		logger:        logger.Named("sessions"),
	}
}

var _ SessionService = (*sessionService)(nil)

func (s *sessionService) StartOrResume(ctx context.Context, relationshipID, userID uuid.UUID) (*models.Session, error) {
	relationship, err := s.relationships.Get(ctx, relationshipID)
	if err != nil {
		return nil, err
	}
	if !relationship.Involves(userID) {
		return nil, apperrors.ErrForbidden
	}

	if relationship.Status == models.RelationshipAccepted {
		session, err := s.sessions.FindOrCreate(ctx, relationshipID)
		if err != nil {
			return nil, err
		}
		return session, nil
	}

	// Not accepted: never create, but an already started session remains
	// reachable so a mid-test breakup does not strand submitted answers.
	session, err := s.sessions.GetByRelationship(ctx, relationshipID)
	if err != nil {
		if relationship.Status == models.RelationshipPending {
			return nil, apperrors.ErrConflict
		}
		return nil, err
	}
	return session, nil
}

func (s *sessionService) State(ctx context.Context, relationshipID, userID uuid.UUID) (*TestState, error) {
	relationship, err := s.relationships.Get(ctx, relationshipID)
	if err != nil {
		return nil, err
	}
	role, ok := relationship.RoleOf(userID)
	if !ok {
		return nil, apperrors.ErrForbidden
	}

	session, err := s.sessions.GetByRelationship(ctx, relationshipID)
	if err != nil {
		return nil, err
	}

	responses, err := s.responses.ListBySessionAndUser(ctx, session.ID, userID)
	if err != nil {
		return nil, err
	}

	return &TestState{
		Session:   session,
		Role:      role,
		Responses: responses,
	}, nil
}

func (s *sessionService) Questions(ctx context.Context) ([]*models.TestQuestion, error) {
	return s.questions.List(ctx)
}
