package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"medreminder/internal/application/dto"
	"medreminder/internal/domain/entity"
	appErrors "medreminder/internal/pkg/errors"
	"medreminder/internal/pkg/logger"

	"github.com/labstack/echo/v4"
)

// fakeMedicationService returns err when set, otherwise echoes the request.
type fakeMedicationService struct {
	err        error
	lastUserID string
	lastID     uint
	lastUpdate dto.UpdateMedicationRequest
}

func (f *fakeMedicationService) AddMedication(ctx context.Context, userID string, req dto.CreateMedicationRequest) (*dto.MedicationResponse, error) {
	f.lastUserID = userID
	if f.err != nil {
		return nil, f.err
	}
	return &dto.MedicationResponse{ID: 1, Name: req.Name, Dosage: req.Dosage, Frequency: req.Frequency}, nil
}

func (f *fakeMedicationService) UpdateMedication(ctx context.Context, userID string, medicationID uint, req dto.UpdateMedicationRequest) (*dto.MedicationResponse, error) {
	f.lastUserID, f.lastID, f.lastUpdate = userID, medicationID, req
	if f.err != nil {
		return nil, f.err
	}
	return &dto.MedicationResponse{ID: medicationID}, nil
}

func (f *fakeMedicationService) DeleteMedication(ctx context.Context, userID string, medicationID uint) error {
	f.lastUserID, f.lastID = userID, medicationID
	return f.err
}

func (f *fakeMedicationService) ListMedications(ctx context.Context, userID string) ([]dto.MedicationResponse, error) {
	f.lastUserID = userID
	if f.err != nil {
		return nil, f.err
	}
	return []dto.MedicationResponse{{ID: 1}, {ID: 2}}, nil
}

func (f *fakeMedicationService) GetMedication(ctx context.Context, userID string, medicationID uint) (*dto.MedicationResponse, error) {
	f.lastUserID, f.lastID = userID, medicationID
	if f.err != nil {
		return nil, f.err
	}
	return &dto.MedicationResponse{ID: medicationID}, nil
}

func (f *fakeMedicationService) InitializeSchedules(ctx context.Context) error {
	return nil
}

type fakeUserService struct {
	err  error
	user *entity.User
}

func (f *fakeUserService) Register(ctx context.Context, req dto.RegisterUserRequest) (*dto.UserResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.UserResponse{ID: "user-1", Email: req.Email, APIToken: "token-1"}, nil
}

func (f *fakeUserService) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "token-1" {
		return "user-1", nil
	}
	return "", appErrors.ErrUnauthorized
}

func (f *fakeUserService) GetUser(ctx context.Context, userID string) (*entity.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

var errStoreDown = errors.New("disk I/O error")

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "user-1")
	return c, rec
}

func testLogger() logger.Logger {
	return logger.New("error")
}
