package hospital

import (
	"context"

	"github.com/google/uuid"

	"github.com/medichannel/channeling/internal/platform/apperr"
	"github.com/medichannel/channeling/internal/platform/validate"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a hospital. New hospitals wait for approval.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Hospital, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	h := &Hospital{
		Name:               in.Name,
		RegistrationNumber: in.RegistrationNumber,
		Address:            in.Address,
		Phone:              in.Phone,
		Email:              in.Email,
		Status:             Approval.Initial(),
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Hospital, int, error) {
	if f.Status != "" && !Approval.Valid(f.Status) {
		return nil, 0, apperr.Invalid("status", "unknown hospital status "+string(f.Status))
	}
	return s.repo.List(ctx, f, limit, offset)
}

// ChangeStatus moves a hospital through the approval workflow.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, target Status) (*Hospital, error) {
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Approval.Transition(h.Status, target)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	h.Status = next
	return h, nil
}
