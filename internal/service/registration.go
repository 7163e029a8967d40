package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/enrollhub/internal/model"
	"github.com/Shivanand-hulikatti/enrollhub/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RegistrationService owns the registration ledger: admission against
// capacity, the approval workflow and course lesson progress.
type RegistrationService struct {
	store repository.Store
	cache ResourceCache
}

// NewRegistrationService constructs a RegistrationService. cache may be nil.
func NewRegistrationService(store repository.Store, cache ResourceCache) *RegistrationService {
	return &RegistrationService{store: store, cache: cacheOrNoop(cache)}
}

// Submit admits a new registration against resourceID.
//
// Free resources are approved on the spot and, for events, take a seat in the
// same transaction. Paid resources start pending and leave the counter alone
// until an administrator verifies the payment in Approve.
//
// The duplicate check for known users runs before the transaction as a plain
// query. The deterministic id plus the store's (user, resource) unique key
// reject whichever of two racing submissions commits second.
func (s *RegistrationService) Submit(ctx context.Context, resourceID string, req model.SubmitRequest) (*model.Registration, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.ScreenshotURL = strings.TrimSpace(req.ScreenshotURL)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if resourceID == "" {
		return nil, invalidf("resource id is required")
	}

	reg := &model.Registration{
		ID:             uuid.New().String(),
		UserID:         model.OptionalString(req.UserID),
		Name:           req.Name,
		Email:          req.Email,
		Phone:          model.OptionalString(req.Phone),
		TrxID:          model.OptionalString(req.TrxID),
		ScreenshotURL:  model.OptionalString(req.ScreenshotURL),
		PaymentMethod:  model.OptionalString(req.PaymentMethod),
		AdditionalInfo: model.OptionalString(req.AdditionalInfo),
	}
	if reg.UserID != nil {
		reg.ID = model.RegistrationKey(*reg.UserID, resourceID)

		_, err := s.store.FindRegistration(ctx, *reg.UserID, resourceID)
		switch {
		case err == nil:
			return nil, repository.ErrDuplicateRegistration
		case !errors.Is(err, repository.ErrNotFound):
			return nil, wrap("check duplicate registration", err)
		}
	}

	var tookSeat bool
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		tookSeat = false

		res, err := tx.GetResourceForUpdate(ctx, resourceID)
		if err != nil {
			return err
		}
		if res.IsDeleted {
			return repository.ErrNotFound
		}
		if res.IsFull() {
			return repository.ErrCapacityExceeded
		}
		if res.PricingType == model.PricingPaid && reg.TrxID == nil {
			return invalidf("trxId is required for paid registrations")
		}

		reg.SetRef(res.Ref())
		reg.Status = model.StatusPending
		reg.RegisteredAt = time.Now().UTC()
		if res.PricingType == model.PricingFree {
			reg.Status = model.StatusApproved
			if res.Bounded() {
				if err := tx.SetRegisteredCount(ctx, res.ID, res.RegisteredCount+1); err != nil {
					return err
				}
				tookSeat = true
			}
		}
		return tx.InsertRegistration(ctx, reg)
	})
	if err != nil {
		return nil, wrap("submit registration", err)
	}

	if tookSeat {
		invalidate(ctx, s.cache, resourceID)
	}
	log.Info().
		Str("registration_id", reg.ID).
		Str("resource_id", resourceID).
		Str("status", string(reg.Status)).
		Msg("registration submitted")
	return reg, nil
}

// Approve moves a pending registration to approved.
//
// Event capacity is checked again here: pending submissions can outnumber the
// seats left, and the first payment verified gets the seat. A registration
// that loses that race stays pending. When the registration belongs to a known
// user, the approval notification is written in the same transaction.
func (s *RegistrationService) Approve(ctx context.Context, id string) (*model.Registration, error) {
	var (
		approved *model.Registration
		tookSeat bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		tookSeat = false

		reg, err := tx.GetRegistrationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if reg.Status == model.StatusApproved {
			return repository.ErrAlreadyApproved
		}

		res, err := tx.GetResourceForUpdate(ctx, reg.Ref().ID)
		if err != nil {
			return err
		}
		if res.IsDeleted {
			return repository.ErrNotFound
		}
		if res.Bounded() {
			if res.IsFull() {
				return repository.ErrCapacityExceeded
			}
			if err := tx.SetRegisteredCount(ctx, res.ID, res.RegisteredCount+1); err != nil {
				return err
			}
			tookSeat = true
		}

		if err := tx.SetRegistrationStatus(ctx, reg.ID, model.StatusApproved); err != nil {
			return err
		}
		reg.Status = model.StatusApproved

		if reg.UserID != nil {
			if err := tx.InsertNotification(ctx, approvalNotification(res, *reg.UserID)); err != nil {
				return err
			}
		}
		approved = reg
		return nil
	})
	if err != nil {
		return nil, wrap("approve registration", err)
	}

	if tookSeat {
		invalidate(ctx, s.cache, approved.Ref().ID)
	}
	log.Info().Str("registration_id", id).Msg("registration approved")
	return approved, nil
}

// Reject deletes a registration in either state. Only approved registrations
// ever took a seat, and rejecting one does not hand the seat back.
func (s *RegistrationService) Reject(ctx context.Context, id string) error {
	if err := s.store.DeleteRegistration(ctx, id); err != nil {
		return wrap("reject registration", err)
	}
	log.Info().Str("registration_id", id).Msg("registration rejected")
	return nil
}

// ToggleLessonCompletion adds or removes lessonID from a course
// registration's completed set and returns the resulting set. Asking for the
// state the lesson is already in changes nothing.
func (s *RegistrationService) ToggleLessonCompletion(ctx context.Context, id, lessonID string, complete bool) ([]string, error) {
	lessonID = strings.TrimSpace(lessonID)
	if lessonID == "" {
		return nil, invalidf("lesson id is required")
	}

	var completed []string
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		reg, err := tx.GetRegistrationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if reg.CourseID == nil {
			return invalidf("lesson progress applies to course registrations only")
		}

		completed = reg.CompletedLessonIDs
		if reg.HasCompleted(lessonID) == complete {
			return nil
		}
		if complete {
			completed = append(completed, lessonID)
		} else {
			completed = slices.DeleteFunc(completed, func(l string) bool { return l == lessonID })
		}
		return tx.SetCompletedLessons(ctx, id, completed)
	})
	if err != nil {
		return nil, wrap("toggle lesson completion", err)
	}
	if completed == nil {
		completed = []string{}
	}
	return completed, nil
}

// Get returns one registration.
func (s *RegistrationService) Get(ctx context.Context, id string) (*model.Registration, error) {
	reg, err := s.store.GetRegistration(ctx, id)
	if err != nil {
		return nil, wrap("get registration", err)
	}
	return reg, nil
}

// List returns registrations matching filter, newest first.
func (s *RegistrationService) List(ctx context.Context, filter model.RegistrationFilter) ([]model.Registration, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalidf("unknown status %q", filter.Status)
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, invalidf("unknown resource kind %q", filter.Kind)
	}
	regs, err := s.store.ListRegistrations(ctx, filter)
	if err != nil {
		return nil, wrap("list registrations", err)
	}
	return regs, nil
}
