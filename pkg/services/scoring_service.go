package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pairlink-inc/pairlink-engine/pkg/apperrors"
	"github.com/pairlink-inc/pairlink-engine/pkg/models"
	"github.com/pairlink-inc/pairlink-engine/pkg/notify"
	"github.com/pairlink-inc/pairlink-engine/pkg/repositories"
	"github.com/pairlink-inc/pairlink-engine/pkg/scoring"
)

// SubmitItem is one answer in a batch submission.
type SubmitItem struct {
	QuestionID     uuid.UUID `json:"question_id"`
	ResponseText   string    `json:"response_text,omitempty"`
	SelectedOption string    `json:"selected_option,omitempty"`
}

// SubmitOutcome reports what a batch submission led to.
//
// Exactly one of three shapes comes back on success:
//   - Completed false: the partner has not finished yet.
//   - Completed true, Result nil: both finished but another submission holds
//     the scoring claim (AlreadyScored false) or scoring already produced a
//     result that the caller can fetch (AlreadyScored true).
//   - Completed true, Result set: this call performed the scoring.
type SubmitOutcome struct {
	Session           *models.Session `json:"session"`
	FailedQuestionIDs []uuid.UUID     `json:"failed_question_ids,omitempty"`
	Completed         bool            `json:"completed"`
	AlreadyScored     bool            `json:"already_scored,omitempty"`
	Result            *models.Result  `json:"result,omitempty"`
	FallbackUsed      bool            `json:"-"`
}

// ScoringService orchestrates submission and scoring of compatibility tests.
//
// Concurrency rules: simultaneous submissions from both partners are safe.
// The scoring claim guarantees at most one oracle call and exactly one
// persisted result per session, no matter how the final two submissions race.
type ScoringService interface {
	// SubmitBatch stores the user's answers against a session obtained from
	// SessionService.StartOrResume, marks their side complete, and triggers
	// scoring when both sides are done. Item failures do not abort the
	// batch; they are reported in the outcome.
	SubmitBatch(ctx context.Context, sessionID, userID uuid.UUID, items []SubmitItem) (*SubmitOutcome, error)

	// Result returns the persisted result for a session the user is a party to.
	// apperrors.ErrNotFound until scoring has completed.
	Result(ctx context.Context, sessionID, userID uuid.UUID) (*models.Result, error)

	// TopCouples returns the highest-scoring completed sessions.
	TopCouples(ctx context.Context, limit int) ([]repositories.TopCouple, error)
}

type scoringService struct {
	relationships repositories.RelationshipRepository
	sessions      repositories.SessionRepository
	responses     repositories.ResponseRepository
	results       repositories.ResultRepository
	questions     repositories.QuestionRepository
	oracle        scoring.Oracle
	dispatcher    *notify.Dispatcher
	claimExpiry   time.Duration
	logger        *zap.Logger
}

// NewScoringService creates a new scoring service. claimExpiry bounds how
// long a scoring claim can go unresolved before another submission may
// re-claim it.
func NewScoringService(
	relationships repositories.RelationshipRepository,
	sessions repositories.SessionRepository,
	responses repositories.ResponseRepository,
	results repositories.ResultRepository,
	questions repositories.QuestionRepository,
	oracle scoring.Oracle,
	dispatcher *notify.Dispatcher,
	claimExpiry time.Duration,
	logger *zap.Logger,
) ScoringService {
	if claimExpiry <= 0 {
		claimExpiry = time.Minute
	}
	return &scoringService{
		relationships: relationships,
		sessions:      sessions,
		responses:     responses,
		results:       results,
		questions:     questions,
		oracle:        oracle,
		dispatcher:    dispatcher,
		claimExpiry:   claimExpiry,
		logger:        logger.Named("scoring"),
	}
}

var _ ScoringService = (*scoringService)(nil)

func (s *scoringService) SubmitBatch(ctx context.Context, sessionID, userID uuid.UUID, items []SubmitItem) (*SubmitOutcome, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// The relationship resolves the caller's role. Its current status does
	// not gate submission: a session outlives a breakup and stays
	// completable.
	relationship, err := s.relationships.Get(ctx, session.RelationshipID)
	if err != nil {
		return nil, err
	}
	role, ok := relationship.RoleOf(userID)
	if !ok {
		return nil, apperrors.ErrForbidden
	}

	if session.Status == models.SessionCompleted {
		return s.alreadyScoredOutcome(ctx, session)
	}

	// Best effort per item: one bad answer must not discard the rest of
	// the batch.
	var failed []uuid.UUID
	for _, item := range items {
		response := &models.Response{
			SessionID:      session.ID,
			UserID:         userID,
			QuestionID:     item.QuestionID,
			ResponseText:   item.ResponseText,
			SelectedOption: item.SelectedOption,
		}
		if err := s.responses.Upsert(ctx, response); err != nil {
			s.logger.Warn("failed to store response",
				zap.String("session_id", session.ID.String()),
				zap.String("question_id", item.QuestionID.String()),
				zap.Error(err))
			failed = append(failed, item.QuestionID)
		}
	}

	if err := s.sessions.MarkCompleted(ctx, session.ID, role); err != nil {
		return nil, err
	}

	session, err = s.sessions.Get(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	if !session.BothCompleted() {
		return &SubmitOutcome{Session: session, FailedQuestionIDs: failed}, nil
	}

	claimed, err := s.sessions.ClaimScoring(ctx, session.ID, s.claimExpiry)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Someone else is scoring, or already finished. Re-read to tell
		// the caller which.
		session, err = s.sessions.Get(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		if session.Status == models.SessionCompleted {
			outcome, err := s.alreadyScoredOutcome(ctx, session)
			if err != nil {
				return nil, err
			}
			outcome.FailedQuestionIDs = failed
			return outcome, nil
		}
		return &SubmitOutcome{Session: session, FailedQuestionIDs: failed, Completed: true}, nil
	}

	result, fallbackUsed, err := s.score(ctx, relationship, session.ID)
	if err != nil {
		return nil, err
	}

	session, err = s.sessions.Get(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(
		notify.Event{
			RecipientID:    relationship.SenderID,
			Message:        "Your compatibility test results are ready.",
			Type:           notify.TypeTestCompleted,
			RelationshipID: &relationship.ID,
		},
		notify.Event{
			RecipientID:    relationship.ReceiverID,
			Message:        "Your compatibility test results are ready.",
			Type:           notify.TypeTestCompleted,
			RelationshipID: &relationship.ID,
		},
	)

	return &SubmitOutcome{
		Session:           session,
		FailedQuestionIDs: failed,
		Completed:         true,
		Result:            result,
		FallbackUsed:      fallbackUsed,
	}, nil
}

func (s *scoringService) alreadyScoredOutcome(ctx context.Context, session *models.Session) (*SubmitOutcome, error) {
	result, err := s.results.GetBySession(ctx, session.ID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	return &SubmitOutcome{
		Session:       session,
		Completed:     true,
		AlreadyScored: true,
		Result:        result,
	}, nil
}

// score runs with the scoring claim held. On oracle failure it substitutes
// the deterministic fallback; a session must never stay unscored because the
// downstream model was unavailable. The claim is released only if persisting
// the result itself fails, so a later submission can retry.
func (s *scoringService) score(ctx context.Context, relationship *models.Relationship, sessionID uuid.UUID) (*models.Result, bool, error) {
	paired, questionText, err := s.pairResponses(ctx, relationship, sessionID)
	if err != nil {
		s.releaseClaim(ctx, sessionID)
		return nil, false, err
	}

	fallbackUsed := false
	analysis, err := s.oracle.Analyze(ctx, paired, questionText)
	if err != nil {
		s.logger.Warn("oracle failed, using fallback analysis",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		analysis = scoring.FallbackAnalysis()
		fallbackUsed = true
	}

	result, err := s.sessions.CompleteWithResult(ctx, sessionID, analysis)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateResult) {
			// A result slipped in despite the claim (stale-claim takeover
			// that finished first). Theirs wins; surface it.
			s.releaseClaim(ctx, sessionID)
			existing, getErr := s.results.GetBySession(ctx, sessionID)
			if getErr != nil {
				return nil, fallbackUsed, getErr
			}
			return existing, fallbackUsed, nil
		}
		s.releaseClaim(ctx, sessionID)
		return nil, fallbackUsed, fmt.Errorf("failed to persist result: %w", err)
	}

	s.logger.Info("session scored",
		zap.String("session_id", sessionID.String()),
		zap.Int("score", result.Score),
		zap.Int("paired_questions", len(paired)),
		zap.Bool("fallback", fallbackUsed))

	return result, fallbackUsed, nil
}

func (s *scoringService) releaseClaim(ctx context.Context, sessionID uuid.UUID) {
	if err := s.sessions.ReleaseClaim(ctx, sessionID); err != nil {
		s.logger.Error("failed to release scoring claim",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
	}
}

// pairResponses joins both users' answers per question. Questions answered by
// only one party are dropped from the scoring input.
func (s *scoringService) pairResponses(ctx context.Context, relationship *models.Relationship, sessionID uuid.UUID) ([]models.PairedResponse, map[string]string, error) {
	responses, err := s.responses.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	type pair struct {
		partyA string
		partyB string
	}
	pairs := make(map[uuid.UUID]*pair)
	var order []uuid.UUID

	for _, resp := range responses {
		p, seen := pairs[resp.QuestionID]
		if !seen {
			p = &pair{}
			pairs[resp.QuestionID] = p
			order = append(order, resp.QuestionID)
		}
		if resp.UserID == relationship.SenderID {
			p.partyA = resp.Answer()
		} else {
			p.partyB = resp.Answer()
		}
	}

	var paired []models.PairedResponse
	for _, questionID := range order {
		p := pairs[questionID]
		if p.partyA == "" || p.partyB == "" {
			continue
		}
		paired = append(paired, models.PairedResponse{
			QuestionID:   questionID,
			PartyAAnswer: p.partyA,
			PartyBAnswer: p.partyB,
		})
	}

	questionText := make(map[string]string)
	questions, err := s.questions.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, q := range questions {
		questionText[q.ID.String()] = q.Text
	}

	return paired, questionText, nil
}

func (s *scoringService) Result(ctx context.Context, sessionID, userID uuid.UUID) (*models.Result, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	relationship, err := s.relationships.Get(ctx, session.RelationshipID)
	if err != nil {
		return nil, err
	}
	if !relationship.Involves(userID) {
		return nil, apperrors.ErrForbidden
	}

	return s.results.GetBySession(ctx, sessionID)
}

func (s *scoringService) TopCouples(ctx context.Context, limit int) ([]repositories.TopCouple, error) {
	return s.sessions.TopCouples(ctx, limit)
}
