// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
//
// Every read-check-write sequence (capacity check plus counter increment,
// status check plus status flip, lesson set edits) runs inside one
// repository.Store transaction. Nothing here holds in-process locks.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Shivanand-hulikatti/enrollhub/internal/model"
	"github.com/Shivanand-hulikatti/enrollhub/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// ErrInvalidInput is returned when a request fails validation.
var ErrInvalidInput = errors.New("invalid input")

// ResourceCache caches resource documents for reads. Failures are treated as
// misses and never fail an operation.
//
// Every invalidation bumps the resource's generation. A fill carries the
// generation read before the store lookup and is dropped when they differ, so
// a read that overlaps a commit never puts the old copy back.
type ResourceCache interface {
	GetResource(ctx context.Context, id string) (*model.Resource, error)
	Generation(ctx context.Context, id string) (int64, error)
	SetResource(ctx context.Context, r *model.Resource, gen int64) error
	InvalidateResource(ctx context.Context, id string) error
}

var errNoCache = errors.New("no cache")

type noopCache struct{}

func (noopCache) GetResource(context.Context, string) (*model.Resource, error) {
	return nil, errNoCache
}

func (noopCache) Generation(context.Context, string) (int64, error) {
	return 0, errNoCache
}

func (noopCache) SetResource(context.Context, *model.Resource, int64) error {
	return nil
}

func (noopCache) InvalidateResource(context.Context, string) error {
	return nil
}

func cacheOrNoop(c ResourceCache) ResourceCache {
	if c == nil {
		return noopCache{}
	}
	return c
}

func invalidate(ctx context.Context, c ResourceCache, id string) {
	if err := c.InvalidateResource(ctx, id); err != nil {
		log.Debug().Err(err).Str("resource_id", id).Msg("cache invalidate skipped")
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names so messages match the request payload.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// isDomainError reports whether err is one the handlers translate into a
// specific response, so it can be returned without extra wrapping.
func isDomainError(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrCapacityExceeded) ||
		errors.Is(err, repository.ErrAlreadyApproved) ||
		errors.Is(err, repository.ErrDuplicateRegistration) ||
		errors.Is(err, repository.ErrTransactionConflict) ||
		errors.Is(err, ErrInvalidInput)
}

func wrap(op string, err error) error {
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
