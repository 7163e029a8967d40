package model

import (
	"strings"
	"time"
)

// RegistrationStatus moves pending -> approved only.
type RegistrationStatus string

const (
	StatusPending  RegistrationStatus = "pending"
	StatusApproved RegistrationStatus = "approved"
)

// Valid reports whether s is a known status.
func (s RegistrationStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved
}

// ResourceRef points a registration at exactly one resource.
type ResourceRef struct {
	Kind ResourceKind
	ID   string
}

// Registration is one user's claim against one resource. Optional fields are
// nil when unset and are omitted from the serialized record.
type Registration struct {
	ID             string             `json:"id"`
	EventID        *string            `json:"eventId,omitempty"`
	CourseID       *string            `json:"courseId,omitempty"`
	ProductID      *string            `json:"productId,omitempty"`
	UserID         *string            `json:"userId,omitempty"`
	Name           string             `json:"name"`
	Email          string             `json:"email"`
	Phone          *string            `json:"phone,omitempty"`
	TrxID          *string            `json:"trxId,omitempty"`
	ScreenshotURL  *string            `json:"screenshotUrl,omitempty"`
	PaymentMethod  *string            `json:"paymentMethod,omitempty"`
	AdditionalInfo *string            `json:"additionalInfo,omitempty"`
	Status         RegistrationStatus `json:"status"`
	RegisteredAt   time.Time          `json:"registeredAt"`
	// CompletedLessonIDs is only used by course registrations.
	CompletedLessonIDs []string `json:"completedLessonIds,omitempty"`
}

// Ref returns the resource this registration belongs to.
func (r *Registration) Ref() ResourceRef {
	switch {
	case r.EventID != nil:
		return ResourceRef{Kind: KindEvent, ID: *r.EventID}
	case r.CourseID != nil:
		return ResourceRef{Kind: KindCourse, ID: *r.CourseID}
	case r.ProductID != nil:
		return ResourceRef{Kind: KindProduct, ID: *r.ProductID}
	}
	return ResourceRef{}
}

// SetRef sets the matching foreign key and clears the other two.
func (r *Registration) SetRef(ref ResourceRef) {
	r.EventID, r.CourseID, r.ProductID = nil, nil, nil
	id := ref.ID
	switch ref.Kind {
	case KindEvent:
		r.EventID = &id
	case KindCourse:
		r.CourseID = &id
	case KindProduct:
		r.ProductID = &id
	}
}

// HasCompleted reports whether lessonID is in the completed set.
func (r *Registration) HasCompleted(lessonID string) bool {
	for _, id := range r.CompletedLessonIDs {
		if id == lessonID {
			return true
		}
	}
	return false
}

// RegistrationKey is the deterministic id used when the registering user is
// known, so one user maps to one ledger row per resource.
func RegistrationKey(userID, resourceID string) string {
	return userID + "_" + resourceID
}

// OptionalString returns nil for blank input so absent fields stay absent.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// RegistrationFilter narrows ListRegistrations. Zero values match everything.
type RegistrationFilter struct {
	ResourceID string
	Kind       ResourceKind
	Status     RegistrationStatus
	UserID     string
	// Search is a case-insensitive substring match on name, email, phone and trxId.
	Search string
}

// SubmitRequest is the payload for registering against a resource.
type SubmitRequest struct {
	UserID         string `json:"userId,omitempty" validate:"max=128,excludes=_"`
	Name           string `json:"name" validate:"required,max=200"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone,omitempty" validate:"max=32"`
	TrxID          string `json:"trxId,omitempty" validate:"max=128"`
	ScreenshotURL  string `json:"screenshotUrl,omitempty" validate:"omitempty,url"`
	PaymentMethod  string `json:"paymentMethod,omitempty" validate:"max=64"`
	AdditionalInfo string `json:"additionalInfo,omitempty" validate:"max=2000"`
}

// LessonToggleRequest is the payload for marking a lesson complete or not.
type LessonToggleRequest struct {
	Complete bool `json:"complete"`
}
