package service

import (
	"context"

	"kycgate/internal/kyc/models"
	dErrors "kycgate/pkg/domain-errors"
)

// GetStatus returns the user's verification status and document history in
// upload order.
func (s *Service) GetStatus(ctx context.Context, rawUserID string) (*models.Status, error) {
	user, err := s.loadUser(ctx, rawUserID)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load documents")
	}
	return &models.Status{
		KycStatus:     user.KycStatus,
		KycVerifiedAt: user.KycVerifiedAt,
		Documents:     docs,
	}, nil
}
