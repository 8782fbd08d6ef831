package document

import (
	"context"
	"sync"
	"time"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

// InMemoryDocumentStore keeps documents keyed by ID with a per-user index in
// upload order.
type InMemoryDocumentStore struct {
	mu     sync.RWMutex
	docs   map[id.DocumentID]*models.Document
	byUser map[id.UserID][]id.DocumentID
}

func New() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{
		docs:   make(map[id.DocumentID]*models.Document),
		byUser: make(map[id.UserID][]id.DocumentID),
	}
}

func (s *InMemoryDocumentStore) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	s.docs[doc.ID] = doc.Clone()
	s.byUser[doc.UserID] = append(s.byUser[doc.UserID], doc.ID)
	return nil
}

// Update records a classification result. Classified documents are immutable.
func (s *InMemoryDocumentStore) Update(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.docs[doc.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.IsClassified() {
		return sentinel.ErrInvalidState
	}
	s.docs[doc.ID] = doc.Clone()
	return nil
}

func (s *InMemoryDocumentStore) FindByID(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.docs[docID]; ok {
		return d.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryDocumentStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byUser[userID]
	out := make([]*models.Document, 0, len(ids))
	for _, docID := range ids {
		out = append(out, s.docs[docID].Clone())
	}
	return out, nil
}

func (s *InMemoryDocumentStore) ListByStatus(_ context.Context, status id.KycStatus) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Document
	for _, ids := range s.byUser {
		for _, docID := range ids {
			if d := s.docs[docID]; d.Status == status {
				out = append(out, d.Clone())
			}
		}
	}
	return out, nil
}

// MarkInvalid finalizes unclassified documents as invalid in one step.
// Already classified documents are left untouched.
func (s *InMemoryDocumentStore) MarkInvalid(_ context.Context, docIDs []id.DocumentID, reason string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for _, docID := range docIDs {
		d, ok := s.docs[docID]
		if !ok || d.IsClassified() {
			continue
		}
		next := d.Clone()
		next.ApplyOutcome(models.Invalid(reason), now)
		s.docs[docID] = next
		updated++
	}
	return updated, nil
}
