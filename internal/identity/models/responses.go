package models

import "time"

// UserResponse is the public projection of a user. The credential never leaves
// the service. ID and UserID carry the same value for client compatibility.
type UserResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	CreatedAt     time.Time  `json:"createdAt"`
	KycStatus     string     `json:"kycStatus"`
	KycVerifiedAt *time.Time `json:"kycVerifiedAt"`
}

// ToResponse projects a user for the API.
func ToResponse(u *User) *UserResponse {
	return &UserResponse{
		ID:            u.ID.String(),
		UserID:        u.ID.String(),
		Email:         u.Email,
		Phone:         u.Phone,
		CreatedAt:     u.CreatedAt,
		KycStatus:     u.KycStatus.String(),
		KycVerifiedAt: u.KycVerifiedAt,
	}
}
