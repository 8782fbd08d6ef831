package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kycgate/internal/identity/handler/mocks"
	"kycgate/internal/identity/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/identity-mocks.go -package=mocks Service
type IdentityHandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *IdentityHandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestIdentityHandlerSuite(t *testing.T) {
	suite.Run(t, new(IdentityHandlerSuite))
}

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		New(mockService, logger).Register(r)
	})
	return r, mockService
}

func sampleUser() *models.User {
	return models.NewUser(id.NewUserID(), "jane@example.com", "+15551234567", "hash",
		time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
}

func (s *IdentityHandlerSuite) TestRegister() {
	s.Run("returns 201 with public user projection", func() {
		router, svc := newTestRouter(s.T())
		user := sampleUser()
		req := models.RegisterRequest{Email: "jane@example.com", Password: "secret1", Phone: "+15551234567"}
		svc.EXPECT().Register(gomock.Any(), req).Return(user, nil)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/users", req))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		env := testutil.DecodeEnvelope(s.T(), rr)
		s.True(env.Success)
		s.Equal("User registered successfully", env.Message)

		data := testutil.DecodeData[map[string]any](s.T(), env)
		s.Equal(user.ID.String(), data["id"])
		s.Equal(user.ID.String(), data["userId"])
		s.Equal("jane@example.com", data["email"])
		s.Equal("+15551234567", data["phone"])
		s.Equal("no_documents", data["kycStatus"])
		s.Contains(data, "kycVerifiedAt")
		s.Nil(data["kycVerifiedAt"])
		s.NotContains(data, "password")
		s.NotContains(data, "passwordHash")
	})

	s.Run("maps validation errors to 400", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Register(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "Invalid email format"))

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/users",
			map[string]string{"email": "bad", "password": "secret1", "phone": "+15551234567"}))

		testutil.AssertFailure(s.T(), rr, http.StatusBadRequest, "Invalid email format")
	})

	s.Run("maps conflicts to 409", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Register(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "User with this email already exists"))

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/users",
			map[string]string{"email": "jane@example.com", "password": "secret1", "phone": "+15551234567"}))

		testutil.AssertFailure(s.T(), rr, http.StatusConflict, "User with this email already exists")
	})

	s.Run("rejects malformed json without calling the service", func() {
		router, _ := newTestRouter(s.T())

		rr := testutil.DoRequest(router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/users", "{not json"))

		testutil.AssertFailure(s.T(), rr, http.StatusBadRequest, "Invalid request body")
	})

	s.Run("hides internal failures", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().Register(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to create user"))

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/users",
			map[string]string{"email": "jane@example.com", "password": "secret1", "phone": "+15551234567"}))

		testutil.AssertFailure(s.T(), rr, http.StatusInternalServerError, "Internal server error")
		s.NotContains(rr.Body.String(), "connection refused")
	})
}

func (s *IdentityHandlerSuite) TestGetUser() {
	s.Run("returns 200 with user", func() {
		router, svc := newTestRouter(s.T())
		user := sampleUser()
		verified := user.CreatedAt.Add(time.Minute)
		user.KycStatus = id.KycStatusValid
		user.KycVerifiedAt = &verified
		svc.EXPECT().GetByID(gomock.Any(), user.ID.String()).Return(user, nil)

		rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/api/users/"+user.ID.String()))

		testutil.AssertStatusOK(s.T(), rr)
		env := testutil.DecodeEnvelope(s.T(), rr)
		s.True(env.Success)
		data := testutil.DecodeData[models.UserResponse](s.T(), env)
		s.Equal("valid", data.KycStatus)
		s.Require().NotNil(data.KycVerifiedAt)
		s.True(data.KycVerifiedAt.Equal(verified))
	})

	s.Run("unknown user is 404", func() {
		router, svc := newTestRouter(s.T())
		svc.EXPECT().GetByID(gomock.Any(), "non-existent-user-id").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "User not found"))

		rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/api/users/non-existent-user-id"))

		testutil.AssertFailure(s.T(), rr, http.StatusNotFound, "User not found")
	})
}
