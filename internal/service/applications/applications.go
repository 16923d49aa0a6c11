package applications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/events"
	"github.com/improveclean/cleaning-site/internal/service"
	"github.com/improveclean/cleaning-site/internal/store/applications"
)

const (
	MsgReceived = "Thanks for applying! Our hiring team will review your experience and reach out soon."

	defaultListLimit = 50
	maxListLimit     = 200
)

type ApplicationStore interface {
	Create(ctx context.Context, a *applications.Application) (*applications.Application, error)
	List(ctx context.Context, f applications.Filter) ([]*applications.Application, error)
	MarkReviewed(ctx context.Context, id int64) error
}

type ApplicationsService struct {
	log  *zap.Logger
	repo ApplicationStore
	prod service.Publisher
	now  func() time.Time
}

func NewApplicationsService(log *zap.Logger, repo ApplicationStore, prod service.Publisher) *ApplicationsService {
	return &ApplicationsService{log: log, repo: repo, prod: prod, now: time.Now}
}

type SubmitRequest struct {
	FullName   string `json:"full_name" form:"full_name" binding:"required,max=120"`
	Email      string `json:"email" form:"email" binding:"required,email"`
	Phone      string `json:"phone" form:"phone" binding:"max=30"`
	Experience string `json:"experience" form:"experience" binding:"required"`
}

func (s *ApplicationsService) Submit(ctx context.Context, req SubmitRequest) (*applications.Application, error) {
	verr := &service.ValidationError{}
	name := strings.TrimSpace(req.FullName)
	switch {
	case name == "":
		verr.Add("full_name", service.MsgRequired)
	case len([]rune(name)) > 120:
		verr.Add("full_name", "Ensure this value has at most 120 characters.")
	}
	if !service.ValidEmail(req.Email) {
		verr.Add("email", service.MsgInvalidEmail)
	}
	phone := strings.TrimSpace(req.Phone)
	if len([]rune(phone)) > 30 {
		verr.Add("phone", "Ensure this value has at most 30 characters.")
	}
	experience := strings.TrimSpace(req.Experience)
	if experience == "" {
		verr.Add("experience", service.MsgRequired)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	a, err := s.repo.Create(ctx, &applications.Application{
		FullName:   name,
		Email:      req.Email,
		Phone:      phone,
		Experience: experience,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save application: %w", err)
	}
	s.log.Info("application received", zap.Int64("application_id", a.ID))

	if s.prod != nil {
		payload := events.ApplicationPayload{ApplicationID: a.ID, FullName: a.FullName, Email: a.Email}
		by, err := events.Encode(events.ApplicationReceived, s.now(), payload)
		if err != nil {
			s.log.Error("event encode error", zap.Error(err))
			return a, nil
		}
		if err := s.prod.Publish(ctx, []byte(strconv.FormatInt(a.ID, 10)), by); err != nil {
			s.log.Error("kafka publish error", zap.Error(err), zap.Int64("application_id", a.ID))
		}
	}
	return a, nil
}

func (s *ApplicationsService) List(ctx context.Context, f applications.Filter) ([]*applications.Application, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*applications.Application{}
	}
	return out, nil
}

func (s *ApplicationsService) MarkReviewed(ctx context.Context, id int64) error {
	if err := s.repo.MarkReviewed(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return service.ErrNotFound
		}
		return err
	}
	return nil
}
