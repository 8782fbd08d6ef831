// Package classifier decides whether an uploaded identity document is
// acceptable. The real decision procedure is external; Simulated stands in
// for it with deterministic rules and a configurable delay.
package classifier

import (
	"context"
	"net/http"
	"strings"
	"time"

	"kycgate/internal/kyc/models"
)

// Classifier judges one document. Implementations must honour ctx so the
// pipeline can bound how long a verification stays in progress.
type Classifier interface {
	Classify(ctx context.Context, upload models.Upload) (models.Outcome, error)
}

// Func adapts a plain function to Classifier.
type Func func(ctx context.Context, upload models.Upload) (models.Outcome, error)

func (f Func) Classify(ctx context.Context, upload models.Upload) (models.Outcome, error) {
	return f(ctx, upload)
}

var acceptedTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
}

// Simulated rejects unreadable content and files whose original name carries
// a reject marker. Everything else is valid after Delay.
type Simulated struct {
	Delay         time.Duration
	RejectMarkers []string
}

func NewSimulated(delay time.Duration, rejectMarkers []string) *Simulated {
	markers := make([]string, 0, len(rejectMarkers))
	for _, m := range rejectMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markers = append(markers, m)
		}
	}
	return &Simulated{Delay: delay, RejectMarkers: markers}
}

func (s *Simulated) Classify(ctx context.Context, upload models.Upload) (models.Outcome, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return models.Outcome{}, ctx.Err()
		case <-timer.C:
		}
	}

	if len(upload.Content) == 0 {
		return models.Invalid(models.ReasonUnreadable), nil
	}
	if _, ok := acceptedTypes[sniff(upload.Content)]; !ok {
		return models.Invalid(models.ReasonUnreadable), nil
	}
	name := strings.ToLower(upload.OriginalName)
	for _, marker := range s.RejectMarkers {
		if strings.Contains(name, marker) {
			return models.Invalid(models.ReasonRejected), nil
		}
	}
	return models.Valid(), nil
}

func sniff(content []byte) string {
	ct := http.DetectContentType(content)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}
