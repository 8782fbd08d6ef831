package models

import "time"

// UploadResponse acknowledges an accepted upload.
type UploadResponse struct {
	DocumentID string    `json:"documentId"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// DocumentResponse is one entry of the document history.
type DocumentResponse struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Status       string    `json:"status"`
	UploadedAt   time.Time `json:"uploadedAt"`
	Reason       string    `json:"reason,omitempty"`
}

// StatusResponse is the polling projection.
type StatusResponse struct {
	KycStatus     string             `json:"kycStatus"`
	KycVerifiedAt *time.Time         `json:"kycVerifiedAt"`
	Documents     []DocumentResponse `json:"documents"`
}

func ToUploadResponse(d *Document) *UploadResponse {
	return &UploadResponse{
		DocumentID: d.ID.String(),
		Filename:   d.Filename,
		Status:     d.Status.String(),
		UploadedAt: d.UploadedAt,
	}
}

// ToStatusResponse always renders documents as an array, never null.
func ToStatusResponse(st *Status) *StatusResponse {
	docs := make([]DocumentResponse, 0, len(st.Documents))
	for _, d := range st.Documents {
		docs = append(docs, DocumentResponse{
			ID:           d.ID.String(),
			Filename:     d.Filename,
			OriginalName: d.OriginalName,
			Status:       d.Status.String(),
			UploadedAt:   d.UploadedAt,
			Reason:       d.Reason,
		})
	}
	return &StatusResponse{
		KycStatus:     st.KycStatus.String(),
		KycVerifiedAt: st.KycVerifiedAt,
		Documents:     docs,
	}
}
