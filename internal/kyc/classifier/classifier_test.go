package classifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
)

var (
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpgBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

func TestSimulatedClassify(t *testing.T) {
	c := NewSimulated(0, []string{"rejected", " INVALID "})
	ctx := context.Background()

	tests := []struct {
		name   string
		upload models.Upload
		status id.KycStatus
		reason string
	}{
		{name: "pdf passport", upload: models.Upload{Content: pdfBytes, OriginalName: "passport.pdf"}, status: id.KycStatusValid},
		{name: "png licence", upload: models.Upload{Content: pngBytes, OriginalName: "licence.png"}, status: id.KycStatusValid},
		{name: "jpeg id card", upload: models.Upload{Content: jpgBytes, OriginalName: "card.JPG"}, status: id.KycStatusValid},
		{name: "reject marker in name", upload: models.Upload{Content: pdfBytes, OriginalName: "Invalid-Document.pdf"}, status: id.KycStatusInvalid, reason: models.ReasonRejected},
		{name: "empty content", upload: models.Upload{OriginalName: "empty.pdf"}, status: id.KycStatusInvalid, reason: models.ReasonUnreadable},
		{name: "text disguised as pdf", upload: models.Upload{Content: []byte("hello world"), OriginalName: "fake.pdf"}, status: id.KycStatusInvalid, reason: models.ReasonUnreadable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := c.Classify(ctx, tt.upload)
			require.NoError(t, err)
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, tt.reason, out.Reason)
		})
	}
}

func TestSimulatedHonoursContext(t *testing.T) {
	c := NewSimulated(time.Hour, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Classify(ctx, models.Upload{Content: pdfBytes, OriginalName: "a.pdf"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFunc(t *testing.T) {
	var c Classifier = Func(func(context.Context, models.Upload) (models.Outcome, error) {
		return models.Invalid(models.ReasonRejected), nil
	})
	out, err := c.Classify(context.Background(), models.Upload{})
	require.NoError(t, err)
	assert.Equal(t, id.KycStatusInvalid, out.Status)
}
