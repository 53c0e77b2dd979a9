package doctor

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medichannel/channeling/internal/domain/hospital"
	"github.com/medichannel/channeling/internal/platform/apperr"
	"github.com/medichannel/channeling/internal/platform/validate"
)

// HospitalLookup resolves the hospital a doctor belongs to.
type HospitalLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*hospital.Hospital, error)
}

type Service struct {
	repo      Repository
	hospitals HospitalLookup
}

func NewService(repo Repository, hospitals HospitalLookup) *Service {
	return &Service{repo: repo, hospitals: hospitals}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Doctor, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := checkFee(in.ConsultationFee); err != nil {
		return nil, err
	}
	if _, err := s.hospitals.Get(ctx, in.HospitalID); err != nil {
		return nil, err
	}

	d := &Doctor{
		HospitalID:      in.HospitalID,
		Name:            in.Name,
		Email:           in.Email,
		Phone:           in.Phone,
		Specialization:  in.Specialization,
		Qualification:   in.Qualification,
		ConsultationFee: in.ConsultationFee,
		Status:          Approval.Initial(),
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Doctor, int, error) {
	if f.Status != "" && !Approval.Valid(f.Status) {
		return nil, 0, apperr.Invalid("status", "unknown doctor status "+string(f.Status))
	}
	return s.repo.List(ctx, f, limit, offset)
}

// UpdateFee sets or clears the doctor's consultation fee. Existing
// appointments keep the fee they were booked with.
func (s *Service) UpdateFee(ctx context.Context, id uuid.UUID, fee *decimal.Decimal) (*Doctor, error) {
	if err := checkFee(fee); err != nil {
		return nil, err
	}
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFee(ctx, id, fee); err != nil {
		return nil, err
	}
	d.ConsultationFee = fee
	return d, nil
}

func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, target Status) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Approval.Transition(d.Status, target)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	d.Status = next
	return d, nil
}

func checkFee(fee *decimal.Decimal) error {
	if fee != nil && fee.IsNegative() {
		return apperr.Invalid("consultation_fee", "must not be negative")
	}
	return nil
}
