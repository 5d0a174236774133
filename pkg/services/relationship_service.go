// Package services implements the coordination logic between the HTTP
// boundary and the repositories. Services own the business rules; all
// race-sensitive state transitions are delegated to conditional updates in
// the repository layer.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pairlink-inc/pairlink-engine/pkg/apperrors"
	"github.com/pairlink-inc/pairlink-engine/pkg/models"
	"github.com/pairlink-inc/pairlink-engine/pkg/notify"
	"github.com/pairlink-inc/pairlink-engine/pkg/repositories"
)

// RelationshipService manages the pairing lifecycle between two users.
//
// The invariant it protects: a user holds at most one accepted relationship
// at a time. Pre-checks here give friendly errors on the common paths; the
// authoritative enforcement is the conditional accept in the repository,
// which re-validates both parties inside a single UPDATE.
type RelationshipService interface {
	// SendRequest creates a pending relationship from sender to receiver.
	// Returns apperrors.ErrAlreadyPaired if either user is actively paired,
	// apperrors.ErrPendingExists if an unresolved request already links them.
	SendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (*models.Relationship, error)

	// Accept transitions a pending request to accepted. Only the receiver may
	// accept. Both parties' paired projection updates transactionally with
	// the transition. Returns apperrors.ErrAlreadyPaired when either party
	// became paired since the request was sent.
	Accept(ctx context.Context, relationshipID, userID uuid.UUID) (*models.Relationship, error)

	// Decline removes a pending request. Only the receiver may decline.
	Decline(ctx context.Context, relationshipID, userID uuid.UUID) error

	// End transitions an accepted relationship to ended. Either party may end.
	End(ctx context.Context, relationshipID, userID uuid.UUID) (*models.Relationship, error)

	// Get returns a relationship the user is a party to.
	Get(ctx context.Context, relationshipID, userID uuid.UUID) (*models.Relationship, error)

	// List returns all relationships the user is a party to, newest first.
	List(ctx context.Context, userID uuid.UUID) ([]*models.Relationship, error)

	// PairedStatus reports whether the user currently holds an accepted
	// relationship, from the user_status projection.
	PairedStatus(ctx context.Context, userID uuid.UUID) (bool, error)
}

type relationshipService struct {
	relationships repositories.RelationshipRepository
	userStatus    repositories.UserStatusRepository
	dispatcher    *notify.Dispatcher
	logger        *zap.Logger
}

// NewRelationshipService creates a new relationship service.
func NewRelationshipService(
	relationships repositories.RelationshipRepository,
	userStatus repositories.UserStatusRepository,
	dispatcher *notify.Dispatcher,
	logger *zap.Logger,
) RelationshipService {
	return &relationshipService{
		relationships: relationships,
		userStatus:    userStatus,
		dispatcher:    dispatcher,
		logger:        logger.Named("relationships"),
	}
}

var _ RelationshipService = (*relationshipService)(nil)

func (s *relationshipService) SendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (*models.Relationship, error) {
	if senderID == uuid.Nil || receiverID == uuid.Nil {
		return nil, fmt.Errorf("sender and receiver are required: %w", apperrors.ErrConflict)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("cannot send a request to yourself: %w", apperrors.ErrConflict)
	}

	for _, userID := range []uuid.UUID{senderID, receiverID} {
		paired, err := s.relationships.HasAccepted(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to check pairing: %w", err)
		}
		if paired {
			return nil, apperrors.ErrAlreadyPaired
		}
	}

	pending, err := s.relationships.PendingBetween(ctx, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending request: %w", err)
	}
	if pending {
		return nil, apperrors.ErrPendingExists
	}

	relationship := &models.Relationship{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.RelationshipPending,
	}
	if err := s.relationships.Create(ctx, relationship); err != nil {
		return nil, err
	}

	s.logger.Info("relationship request sent",
		zap.String("relationship_id", relationship.ID.String()),
		zap.String("sender_id", senderID.String()),
		zap.String("receiver_id", receiverID.String()))

	s.dispatcher.Dispatch(notify.Event{
		RecipientID:    receiverID,
		Message:        "You have a new relationship request.",
		Type:           notify.TypeRelationshipRequest,
		RelationshipID: &relationship.ID,
	})

	return relationship, nil
}

func (s *relationshipService) Accept(ctx context.Context, relationshipID, userID uuid.UUID) (*models.Relationship, error) {
	relationship, err := s.relationships.Get(ctx, relationshipID)
	if err != nil {
		return nil, err
	}
	if relationship.ReceiverID != userID {
		return nil, apperrors.ErrForbidden
	}
	if relationship.Status != models.RelationshipPending {
		return nil, apperrors.ErrConflict
	}

	if err := s.relationships.Accept(ctx, relationshipID); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// The CAS lost. Distinguish "a party got paired elsewhere"
			// from "the record itself changed under us".
			current, getErr := s.relationships.Get(ctx, relationshipID)
			if getErr == nil && current.Status == models.RelationshipPending {
				return nil, apperrors.ErrAlreadyPaired
			}
		}
		return nil, err
	}

	relationship.Status = models.RelationshipAccepted

	s.logger.Info("relationship accepted",
		zap.String("relationship_id", relationshipID.String()))

	s.dispatcher.Dispatch(notify.Event{
		RecipientID:    relationship.SenderID,
		Message:        "Your relationship request was accepted.",
		Type:           notify.TypeRelationshipAccepted,
		RelationshipID: &relationship.ID,
	})

	return relationship, nil
}

func (s *relationshipService) Decline(ctx context.Context, relationshipID, userID uuid.UUID) error {
	relationship, err := s.relationships.Get(ctx, relationshipID)
	if err != nil {
		return err
	}
	if relationship.ReceiverID != userID {
		return apperrors.ErrForbidden
	}
	if relationship.Status != models.RelationshipPending {
		return apperrors.ErrConflict
	}

	if err := s.relationships.Delete(ctx, relationshipID); err != nil {
		return err
	}

	s.logger.Info("relationship declined",
		zap.String("relationship_id", relationshipID.String()))

	s.dispatcher.Dispatch(notify.Event{
		RecipientID:    relationship.SenderID,
		Message:        "Your relationship request was declined.",
		Type:           notify.TypeRelationshipDeclined,
		RelationshipID: &relationship.ID,
	})

	return nil
}

func (s *relationshipService) End(ctx context.Context, relationshipID, userID uuid.UUID) (*models.Relationship, error) {
	relationship, err := s.relationships.Get(ctx, relationshipID)
	if err != nil {
		return nil, err
	}
	if !relationship.Involves(userID) {
		return nil, apperrors.ErrForbidden
	}
	if relationship.Status != models.RelationshipAccepted {
		return nil, apperrors.ErrConflict
	}

	if err := s.relationships.End(ctx, relationshipID); err != nil {
		return nil, err
	}

	relationship.Status = models.RelationshipEnded

	s.logger.Info("relationship ended",
		zap.String("relationship_id", relationshipID.String()),
		zap.String("ended_by", userID.String()))

	s.dispatcher.Dispatch(notify.Event{
		RecipientID:    relationship.OtherParty(userID),
		Message:        "Your partner has ended the relationship.",
		Type:           notify.TypeRelationshipEnded,
		RelationshipID: &relationship.ID,
	})

	return relationship, nil
}

func (s *relationshipService) Get(ctx context.Context, relationshipID, userID uuid.UUID) (*models.Relationship, error) {
	relationship, err := s.relationships.Get(ctx, relationshipID)
	if err != nil {
		return nil, err
	}
	if !relationship.Involves(userID) {
		return nil, apperrors.ErrForbidden
	}
	return relationship, nil
}

func (s *relationshipService) List(ctx context.Context, userID uuid.UUID) ([]*models.Relationship, error) {
	return s.relationships.ListForUser(ctx, userID)
}

func (s *relationshipService) PairedStatus(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.userStatus.IsPaired(ctx, userID)
}
