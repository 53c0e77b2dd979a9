package user

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/medichannel/channeling/internal/platform/auth"
	"github.com/medichannel/channeling/internal/platform/validate"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers an account. The role defaults to patient.
func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	u := &User{Name: in.Name, Email: in.Email, Phone: in.Phone, Role: in.Role}
	if u.Role == "" {
		u.Role = auth.RolePatient
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if role != "" {
		if err := validate.Var("role", role, roleTag); err != nil {
			return nil, 0, err
		}
	}
	return s.repo.List(ctx, role, limit, offset)
}
