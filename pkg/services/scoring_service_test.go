package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pairlink-inc/pairlink-engine/pkg/apperrors"
	"github.com/pairlink-inc/pairlink-engine/pkg/models"
	"github.com/pairlink-inc/pairlink-engine/pkg/notify"
	"github.com/pairlink-inc/pairlink-engine/pkg/scoring"
)

type scoringFixture struct {
	rels       *fakeRelationshipRepo
	sessions   *fakeSessionRepo
	responses  *fakeResponseRepo
	results    *fakeResultRepo
	questions  *fakeQuestionRepo
	recorder   *eventRecorder
	dispatcher *notify.Dispatcher
	service    ScoringService

	oracleCalls  atomic.Int32
	oracleDelay  time.Duration
	oracleErr    error
	oracleResult *models.Analysis

	sender    uuid.UUID
	receiver  uuid.UUID
	relID     uuid.UUID
	sessionID uuid.UUID
	q1        uuid.UUID
	q2        uuid.UUID
}

func newScoringFixture(t *testing.T) *scoringFixture {
	t.Helper()

	f := &scoringFixture{
		sender:   uuid.New(),
		receiver: uuid.New(),
		q1:       uuid.New(),
		q2:       uuid.New(),
	}

	f.rels = newFakeRelationshipRepo()
	f.sessions = newFakeSessionRepo(f.rels)
	f.responses = newFakeResponseRepo()
	f.results = &fakeResultRepo{sessions: f.sessions}
	f.questions = &fakeQuestionRepo{questions: []*models.TestQuestion{
		{ID: f.q1, Text: "What is your ideal weekend?", Type: models.QuestionChoice, Options: []string{"Out", "Home"}},
		{ID: f.q2, Text: "How do you handle disagreements?", Type: models.QuestionFreeText},
	}}
	f.recorder = &eventRecorder{}
	f.oracleResult = &models.Analysis{
		Score:       88,
		Strengths:   []models.Insight{{Area: "Values", Details: "Closely aligned."}},
		Weaknesses:  []models.Insight{{Area: "Planning", Details: "Different paces."}},
		Suggestions: []models.Suggestion{{Title: "Weekly check-in", Description: "Short and regular."}},
	}

	oracle := scoring.OracleFunc(func(ctx context.Context, paired []models.PairedResponse, questionText map[string]string) (*models.Analysis, error) {
		f.oracleCalls.Add(1)
		if f.oracleDelay > 0 {
			time.Sleep(f.oracleDelay)
		}
		if f.oracleErr != nil {
			return nil, f.oracleErr
		}
		return f.oracleResult, nil
	})

	rel := &models.Relationship{SenderID: f.sender, ReceiverID: f.receiver, Status: models.RelationshipAccepted}
	require.NoError(t, f.rels.Create(context.Background(), rel))
	f.relID = rel.ID

	// Submissions address a started session, as the API hands it out.
	session, err := f.sessions.FindOrCreate(context.Background(), f.relID)
	require.NoError(t, err)
	f.sessionID = session.ID

	f.dispatcher = notify.NewDispatcher(f.recorder.sink(), time.Second, zap.NewNop())
	f.service = NewScoringService(
		f.rels, f.sessions, f.responses, f.results, f.questions,
		oracle, f.dispatcher, time.Minute, zap.NewNop())
	return f
}

func (f *scoringFixture) items() []SubmitItem {
	return []SubmitItem{
		{QuestionID: f.q1, SelectedOption: "Out"},
		{QuestionID: f.q2, ResponseText: "Talk it through calmly"},
	}
}

func TestSubmitBatch_OutsiderForbidden(t *testing.T) {
	f := newScoringFixture(t)

	_, err := f.service.SubmitBatch(context.Background(), f.sessionID, uuid.New(), f.items())
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestSubmitBatch_UnknownSessionNotFound(t *testing.T) {
	f := newScoringFixture(t)

	_, err := f.service.SubmitBatch(context.Background(), uuid.New(), f.sender, f.items())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSubmitBatch_FirstPartnerWaits(t *testing.T) {
	f := newScoringFixture(t)

	outcome, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)

	assert.False(t, outcome.Completed)
	assert.Nil(t, outcome.Result)
	assert.Empty(t, outcome.FailedQuestionIDs)
	assert.True(t, outcome.Session.PartyACompleted)
	assert.False(t, outcome.Session.PartyBCompleted)
	assert.Equal(t, models.SessionInProgress, outcome.Session.Status)
	assert.Equal(t, int32(0), f.oracleCalls.Load())

	stored, err := f.responses.ListBySessionAndUser(context.Background(), outcome.Session.ID, f.sender)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestSubmitBatch_ResubmissionOverwrites(t *testing.T) {
	f := newScoringFixture(t)

	outcome, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)

	again, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, []SubmitItem{
		{QuestionID: f.q1, SelectedOption: "Home"},
	})
	require.NoError(t, err)

	assert.False(t, again.Completed)
	assert.Equal(t, outcome.Session.ID, again.Session.ID)

	stored, err := f.responses.ListBySessionAndUser(context.Background(), outcome.Session.ID, f.sender)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, resp := range stored {
		if resp.QuestionID == f.q1 {
			assert.Equal(t, "Home", resp.SelectedOption)
		}
	}
}

func TestSubmitBatch_ReportsFailedItems(t *testing.T) {
	f := newScoringFixture(t)
	f.responses.upsertErr[f.q2] = errors.New("column overflow")

	outcome, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, append(f.items(),
		SubmitItem{QuestionID: uuid.Nil, ResponseText: "no question"}))
	require.NoError(t, err)

	assert.ElementsMatch(t, []uuid.UUID{f.q2, uuid.Nil}, outcome.FailedQuestionIDs)

	stored, err := f.responses.ListBySessionAndUser(context.Background(), outcome.Session.ID, f.sender)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "the valid item still lands")
}

func TestSubmitBatch_SecondPartnerTriggersScoring(t *testing.T) {
	f := newScoringFixture(t)

	_, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)

	outcome, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.receiver, []SubmitItem{
		{QuestionID: f.q1, SelectedOption: "Home"},
		{QuestionID: f.q2, ResponseText: "Cool off first, then talk"},
	})
	require.NoError(t, err)

	assert.True(t, outcome.Completed)
	assert.False(t, outcome.AlreadyScored)
	assert.False(t, outcome.FallbackUsed)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, 88, outcome.Result.Score)
	assert.Equal(t, models.SessionCompleted, outcome.Session.Status)
	assert.Equal(t, 88, outcome.Session.Score)
	assert.Equal(t, int32(1), f.oracleCalls.Load())

	persisted, err := f.results.GetBySession(context.Background(), outcome.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, outcome.Result.ID, persisted.ID)

	f.dispatcher.Wait()
	events := f.recorder.byType(notify.TypeTestCompleted)
	require.Len(t, events, 2)
	recipients := []uuid.UUID{events[0].RecipientID, events[1].RecipientID}
	assert.ElementsMatch(t, []uuid.UUID{f.sender, f.receiver}, recipients)
}

func TestSubmitBatch_UnpairedQuestionsDropped(t *testing.T) {
	f := newScoringFixture(t)

	var captured []models.PairedResponse
	oracle := scoring.OracleFunc(func(ctx context.Context, paired []models.PairedResponse, questionText map[string]string) (*models.Analysis, error) {
		captured = paired
		return f.oracleResult, nil
	})
	dispatcher := notify.NewDispatcher(f.recorder.sink(), time.Second, zap.NewNop())
	service := NewScoringService(
		f.rels, f.sessions, f.responses, f.results, f.questions,
		oracle, dispatcher, time.Minute, zap.NewNop())

	// Sender answers both questions, receiver only the first.
	_, err := service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)
	outcome, err := service.SubmitBatch(context.Background(), f.sessionID, f.receiver, []SubmitItem{
		{QuestionID: f.q1, SelectedOption: "Home"},
	})
	require.NoError(t, err)

	require.NotNil(t, outcome.Result)
	require.Len(t, captured, 1)
	assert.Equal(t, f.q1, captured[0].QuestionID)
	assert.Equal(t, "Out", captured[0].PartyAAnswer)
	assert.Equal(t, "Home", captured[0].PartyBAnswer)
}

func TestSubmitBatch_OracleFailureUsesFallback(t *testing.T) {
	f := newScoringFixture(t)
	f.oracleErr = errors.New("provider down")

	_, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)

	outcome, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.receiver, f.items())
	require.NoError(t, err)

	assert.True(t, outcome.Completed)
	assert.True(t, outcome.FallbackUsed)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, scoring.NeutralScore, outcome.Result.Score)
	assert.NotEmpty(t, outcome.Result.Strengths)
	assert.Equal(t, models.SessionCompleted, outcome.Session.Status)
}

func TestSubmitBatch_ConcurrentFinalSubmissionsScoreOnce(t *testing.T) {
	f := newScoringFixture(t)
	f.oracleDelay = 50 * time.Millisecond

	var wg sync.WaitGroup
	outcomes := make([]*SubmitOutcome, 2)
	errs := make([]error, 2)

	submit := func(i int, userID uuid.UUID, items []SubmitItem) {
		defer wg.Done()
		outcomes[i], errs[i] = f.service.SubmitBatch(context.Background(), f.sessionID, userID, items)
	}

	wg.Add(2)
	go submit(0, f.sender, f.items())
	go submit(1, f.receiver, []SubmitItem{
		{QuestionID: f.q1, SelectedOption: "Home"},
		{QuestionID: f.q2, ResponseText: "Sleep on it"},
	})
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	assert.Equal(t, int32(1), f.oracleCalls.Load(), "the oracle runs at most once per session")

	scored := 0
	for _, outcome := range outcomes {
		if outcome.Result != nil {
			scored++
		}
	}
	assert.LessOrEqual(t, scored, 1, "only the claim holder returns the fresh result")

	session, err := f.sessions.GetByRelationship(context.Background(), f.relID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, session.Status)

	_, err = f.results.GetBySession(context.Background(), session.ID)
	assert.NoError(t, err, "exactly one result gets persisted")
}

func TestSubmitBatch_AfterCompletedReturnsExistingResult(t *testing.T) {
	f := newScoringFixture(t)

	_, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)
	first, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.receiver, f.items())
	require.NoError(t, err)
	require.NotNil(t, first.Result)

	again, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)

	assert.True(t, again.Completed)
	assert.True(t, again.AlreadyScored)
	require.NotNil(t, again.Result)
	assert.Equal(t, first.Result.ID, again.Result.ID)
	assert.Equal(t, int32(1), f.oracleCalls.Load())
}

func TestSubmitBatch_StaleClaimIsReclaimed(t *testing.T) {
	f := newScoringFixture(t)

	_, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)

	// Simulate a crash mid-scoring: both flags set, claim held long past expiry.
	session, err := f.sessions.GetByRelationship(context.Background(), f.relID)
	require.NoError(t, err)
	stale := time.Now().Add(-2 * time.Hour)
	f.sessions.mu.Lock()
	raw := f.sessions.sessions[session.ID]
	raw.PartyACompleted = true
	raw.PartyBCompleted = true
	raw.Status = models.SessionScoring
	raw.ClaimedAt = &stale
	f.sessions.mu.Unlock()

	outcome, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.receiver, f.items())
	require.NoError(t, err)

	assert.True(t, outcome.Completed)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, models.SessionCompleted, outcome.Session.Status)
}

func TestSubmitBatch_FreshClaimBlocksSecondScorer(t *testing.T) {
	f := newScoringFixture(t)

	_, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)

	session, err := f.sessions.GetByRelationship(context.Background(), f.relID)
	require.NoError(t, err)
	now := time.Now()
	f.sessions.mu.Lock()
	raw := f.sessions.sessions[session.ID]
	raw.PartyACompleted = true
	raw.Status = models.SessionScoring
	raw.ClaimedAt = &now
	f.sessions.mu.Unlock()

	outcome, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.receiver, f.items())
	require.NoError(t, err)

	assert.True(t, outcome.Completed)
	assert.False(t, outcome.AlreadyScored)
	assert.Nil(t, outcome.Result)
	assert.Equal(t, int32(0), f.oracleCalls.Load())
}

func TestSubmitBatch_PersistFailureReleasesClaim(t *testing.T) {
	f := newScoringFixture(t)
	f.sessions.completeErr = errors.New("connection lost")

	_, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)

	_, err = f.service.SubmitBatch(context.Background(), f.sessionID, f.receiver, f.items())
	require.Error(t, err)

	session, err := f.sessions.GetByRelationship(context.Background(), f.relID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionInProgress, session.Status, "the claim is released for a retry")

	// A later submission can score successfully.
	outcome, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.receiver, f.items())
	require.NoError(t, err)
	require.NotNil(t, outcome.Result)
}

func TestSubmitBatch_SubmissionAfterBreakupStillScores(t *testing.T) {
	f := newScoringFixture(t)

	_, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)

	require.NoError(t, f.rels.End(context.Background(), f.relID))

	outcome, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.receiver, f.items())
	require.NoError(t, err)

	assert.True(t, outcome.Completed)
	require.NotNil(t, outcome.Result)
}

func TestResult_OutsiderForbidden(t *testing.T) {
	f := newScoringFixture(t)

	_, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)
	outcome, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.receiver, f.items())
	require.NoError(t, err)

	_, err = f.service.Result(context.Background(), outcome.Session.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestResult_NotFoundBeforeScoring(t *testing.T) {
	f := newScoringFixture(t)

	outcome, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)

	_, err = f.service.Result(context.Background(), outcome.Session.ID, f.sender)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestResult_AvailableToBothParties(t *testing.T) {
	f := newScoringFixture(t)

	_, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)
	outcome, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.receiver, f.items())
	require.NoError(t, err)

	for _, userID := range []uuid.UUID{f.sender, f.receiver} {
		result, err := f.service.Result(context.Background(), outcome.Session.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, outcome.Result.ID, result.ID)
	}
}

func TestTopCouples(t *testing.T) {
	f := newScoringFixture(t)

	_, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.sender, f.items())
	require.NoError(t, err)
	outcome, err := f.service.SubmitBatch(context.Background(), f.sessionID, f.receiver, f.items())
	require.NoError(t, err)
	require.NotNil(t, outcome.Result)

	couples, err := f.service.TopCouples(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, couples, 1)
	assert.Equal(t, outcome.Session.ID, couples[0].SessionID)
	assert.Equal(t, 88, couples[0].Score)
	assert.Equal(t, f.sender, couples[0].PartyAID)
	assert.Equal(t, f.receiver, couples[0].PartyBID)
}
