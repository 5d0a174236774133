package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pairlink-inc/pairlink-engine/pkg/apperrors"
	"github.com/pairlink-inc/pairlink-engine/pkg/models"
	"github.com/pairlink-inc/pairlink-engine/pkg/notify"
	"github.com/pairlink-inc/pairlink-engine/pkg/repositories"
)

// In-memory fakes mirroring the conditional-update semantics of the real
// repositories, so service tests can exercise the same races the SQL layer
// resolves.

type fakeRelationshipRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.Relationship

	// status, when set, receives the paired projection on accept/end,
	// mirroring the real repository's transactional write.
	status *fakeUserStatusRepo
}

func newFakeRelationshipRepo() *fakeRelationshipRepo {
	return &fakeRelationshipRepo{items: make(map[uuid.UUID]*models.Relationship)}
}

var _ repositories.RelationshipRepository = (*fakeRelationshipRepo)(nil)

func (f *fakeRelationshipRepo) Create(ctx context.Context, relationship *models.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if relationship.ID == uuid.Nil {
		relationship.ID = uuid.New()
	}
	if relationship.Status == "" {
		relationship.Status = models.RelationshipPending
	}
	relationship.CreatedAt = time.Now()
	relationship.UpdatedAt = relationship.CreatedAt
	clone := *relationship
	f.items[relationship.ID] = &clone
	return nil
}

func (f *fakeRelationshipRepo) Get(ctx context.Context, id uuid.UUID) (*models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rel, ok := f.items[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	clone := *rel
	return &clone, nil
}

func (f *fakeRelationshipRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Relationship
	for _, rel := range f.items {
		if rel.Involves(userID) {
			clone := *rel
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRelationshipRepo) HasAccepted(ctx context.Context, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasAcceptedLocked(userID), nil
}

func (f *fakeRelationshipRepo) hasAcceptedLocked(userID uuid.UUID) bool {
	for _, rel := range f.items {
		if rel.Status == models.RelationshipAccepted && rel.Involves(userID) {
			return true
		}
	}
	return false
}

func (f *fakeRelationshipRepo) PendingBetween(ctx context.Context, userA, userB uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rel := range f.items {
		if rel.Status == models.RelationshipPending && rel.Involves(userA) && rel.Involves(userB) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRelationshipRepo) Accept(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rel, ok := f.items[id]
	if !ok || rel.Status != models.RelationshipPending {
		return apperrors.ErrConflict
	}
	if f.hasAcceptedLocked(rel.SenderID) || f.hasAcceptedLocked(rel.ReceiverID) {
		return apperrors.ErrConflict
	}
	rel.Status = models.RelationshipAccepted
	rel.UpdatedAt = time.Now()
	f.setPaired(rel, true)
	return nil
}

func (f *fakeRelationshipRepo) End(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rel, ok := f.items[id]
	if !ok || rel.Status != models.RelationshipAccepted {
		return apperrors.ErrConflict
	}
	rel.Status = models.RelationshipEnded
	rel.UpdatedAt = time.Now()
	f.setPaired(rel, false)
	return nil
}

func (f *fakeRelationshipRepo) setPaired(rel *models.Relationship, paired bool) {
	if f.status == nil {
		return
	}
	f.status.set(rel.SenderID, rel.ReceiverID, paired)
}

func (f *fakeRelationshipRepo) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.Session
	byRel    map[uuid.UUID]uuid.UUID
	results  map[uuid.UUID]*models.Result
	rels     *fakeRelationshipRepo

	// completeErr makes the next CompleteWithResult call fail, for testing
	// the claim release path.
	completeErr error

	completeCalls int
}

func newFakeSessionRepo(rels *fakeRelationshipRepo) *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[uuid.UUID]*models.Session),
		byRel:    make(map[uuid.UUID]uuid.UUID),
		results:  make(map[uuid.UUID]*models.Result),
		rels:     rels,
	}
}

var _ repositories.SessionRepository = (*fakeSessionRepo)(nil)

func (f *fakeSessionRepo) FindOrCreate(ctx context.Context, relationshipID uuid.UUID) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byRel[relationshipID]; ok {
		clone := *f.sessions[id]
		return &clone, nil
	}
	session := &models.Session{
		ID:             uuid.New(),
		RelationshipID: relationshipID,
		Status:         models.SessionInProgress,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	f.sessions[session.ID] = session
	f.byRel[relationshipID] = session.ID
	clone := *session
	return &clone, nil
}

func (f *fakeSessionRepo) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	clone := *session
	return &clone, nil
}

func (f *fakeSessionRepo) GetByRelationship(ctx context.Context, relationshipID uuid.UUID) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byRel[relationshipID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	clone := *f.sessions[id]
	return &clone, nil
}

func (f *fakeSessionRepo) MarkCompleted(ctx context.Context, sessionID uuid.UUID, role models.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if role == models.RolePartyA {
		session.PartyACompleted = true
	} else {
		session.PartyBCompleted = true
	}
	session.UpdatedAt = time.Now()
	return nil
}

func (f *fakeSessionRepo) ClaimScoring(ctx context.Context, sessionID uuid.UUID, claimExpiry time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return false, nil
	}
	stale := session.Status == models.SessionScoring &&
		session.ClaimedAt != nil && time.Since(*session.ClaimedAt) > claimExpiry
	if session.Status != models.SessionInProgress && !stale {
		return false, nil
	}
	now := time.Now()
	session.Status = models.SessionScoring
	session.ClaimedAt = &now
	session.UpdatedAt = now
	return true, nil
}

func (f *fakeSessionRepo) ReleaseClaim(ctx context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if session.Status == models.SessionScoring {
		session.Status = models.SessionInProgress
		session.ClaimedAt = nil
	}
	return nil
}

func (f *fakeSessionRepo) CompleteWithResult(ctx context.Context, sessionID uuid.UUID, analysis *models.Analysis) (*models.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	if f.completeErr != nil {
		err := f.completeErr
		f.completeErr = nil
		return nil, err
	}
	if _, exists := f.results[sessionID]; exists {
		return nil, apperrors.ErrDuplicateResult
	}
	session, ok := f.sessions[sessionID]
	if !ok || session.Status != models.SessionScoring {
		return nil, apperrors.ErrConflict
	}
	result := &models.Result{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Score:       analysis.Score,
		Strengths:   analysis.Strengths,
		Weaknesses:  analysis.Weaknesses,
		Suggestions: analysis.Suggestions,
		CreatedAt:   time.Now(),
	}
	f.results[sessionID] = result
	session.Status = models.SessionCompleted
	session.Score = result.Score
	session.ClaimedAt = nil
	session.UpdatedAt = time.Now()
	clone := *result
	return &clone, nil
}

func (f *fakeSessionRepo) TopCouples(ctx context.Context, limit int) ([]repositories.TopCouple, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var couples []repositories.TopCouple
	for _, session := range f.sessions {
		if session.Status != models.SessionCompleted {
			continue
		}
		rel, err := f.rels.Get(ctx, session.RelationshipID)
		if err != nil {
			continue
		}
		couples = append(couples, repositories.TopCouple{
			SessionID:      session.ID,
			RelationshipID: session.RelationshipID,
			PartyAID:       rel.SenderID,
			PartyBID:       rel.ReceiverID,
			Score:          session.Score,
			CompletedAt:    session.UpdatedAt,
		})
	}
	sort.Slice(couples, func(i, j int) bool { return couples[i].Score > couples[j].Score })
	if len(couples) > limit {
		couples = couples[:limit]
	}
	return couples, nil
}

type responseKey struct {
	sessionID  uuid.UUID
	userID     uuid.UUID
	questionID uuid.UUID
}

type fakeResponseRepo struct {
	mu    sync.Mutex
	items map[responseKey]*models.Response
	order []responseKey

	// upsertErr fails upserts for the given question id, for testing
	// best-effort batch semantics.
	upsertErr map[uuid.UUID]error
}

func newFakeResponseRepo() *fakeResponseRepo {
	return &fakeResponseRepo{
		items:     make(map[responseKey]*models.Response),
		upsertErr: make(map[uuid.UUID]error),
	}
}

var _ repositories.ResponseRepository = (*fakeResponseRepo)(nil)

func (f *fakeResponseRepo) Upsert(ctx context.Context, response *models.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if response.QuestionID == uuid.Nil {
		return apperrors.ErrConflict
	}
	if err, ok := f.upsertErr[response.QuestionID]; ok {
		return err
	}
	key := responseKey{response.SessionID, response.UserID, response.QuestionID}
	if _, exists := f.items[key]; !exists {
		f.order = append(f.order, key)
	}
	clone := *response
	f.items[key] = &clone
	return nil
}

func (f *fakeResponseRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Response
	for _, key := range f.order {
		if key.sessionID == sessionID {
			clone := *f.items[key]
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeResponseRepo) ListBySessionAndUser(ctx context.Context, sessionID, userID uuid.UUID) ([]*models.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Response
	for _, key := range f.order {
		if key.sessionID == sessionID && key.userID == userID {
			clone := *f.items[key]
			out = append(out, &clone)
		}
	}
	return out, nil
}

type fakeResultRepo struct {
	sessions *fakeSessionRepo
}

var _ repositories.ResultRepository = (*fakeResultRepo)(nil)

func (f *fakeResultRepo) GetBySession(ctx context.Context, sessionID uuid.UUID) (*models.Result, error) {
	f.sessions.mu.Lock()
	defer f.sessions.mu.Unlock()
	result, ok := f.sessions.results[sessionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	clone := *result
	return &clone, nil
}

type fakeQuestionRepo struct {
	questions []*models.TestQuestion
}

var _ repositories.QuestionRepository = (*fakeQuestionRepo)(nil)

func (f *fakeQuestionRepo) List(ctx context.Context) ([]*models.TestQuestion, error) {
	return f.questions, nil
}

type fakeUserStatusRepo struct {
	mu     sync.Mutex
	paired map[uuid.UUID]bool
}

func newFakeUserStatusRepo() *fakeUserStatusRepo {
	return &fakeUserStatusRepo{paired: make(map[uuid.UUID]bool)}
}

var _ repositories.UserStatusRepository = (*fakeUserStatusRepo)(nil)

func (f *fakeUserStatusRepo) set(userA, userB uuid.UUID, paired bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paired[userA] = paired
	f.paired[userB] = paired
}

func (f *fakeUserStatusRepo) IsPaired(ctx context.Context, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paired[userID], nil
}

// eventRecorder captures dispatched notification events.
type eventRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *eventRecorder) sink() notify.Sink {
	return notify.SinkFunc(func(ctx context.Context, event notify.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, event)
		return nil
	})
}

func (r *eventRecorder) byType(eventType string) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, event := range r.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}
