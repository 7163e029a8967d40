// Package model defines the core domain types for the enrollment system.
package model

import (
	"encoding/json"
	"time"
)

// ResourceKind identifies what sort of offering a resource is.
type ResourceKind string

const (
	KindEvent   ResourceKind = "event"
	KindCourse  ResourceKind = "course"
	KindProduct ResourceKind = "product"
)

// Valid reports whether k is one of the known kinds.
func (k ResourceKind) Valid() bool {
	switch k {
	case KindEvent, KindCourse, KindProduct:
		return true
	}
	return false
}

// PricingType decides the initial status of a new registration.
type PricingType string

const (
	PricingFree PricingType = "free"
	PricingPaid PricingType = "paid"
)

// Valid reports whether p is free or paid.
func (p PricingType) Valid() bool {
	return p == PricingFree || p == PricingPaid
}

// Resource is an offering users register against. Only events carry a seat
// ceiling; courses and products are uncapped.
type Resource struct {
	ID          string       `json:"id"`
	Kind        ResourceKind `json:"kind"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	PricingType PricingType  `json:"pricingType"`
	Price       *float64     `json:"price,omitempty"`
	TotalSeats  *int         `json:"totalSeats,omitempty"`
	// RegisteredCount counts approved registrations only.
	RegisteredCount    int       `json:"registeredCount"`
	IsDeleted          bool      `json:"isDeleted"`
	PurgeRegistrations bool      `json:"-"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Bounded returns true when the resource has a seat ceiling.
func (r *Resource) Bounded() bool {
	return r.Kind == KindEvent && r.TotalSeats != nil
}

// Remaining returns the number of available seats, or -1 for uncapped resources.
func (r *Resource) Remaining() int {
	if !r.Bounded() {
		return -1
	}
	return *r.TotalSeats - r.RegisteredCount
}

// IsFull returns true when no seats remain.
func (r *Resource) IsFull() bool {
	return r.Bounded() && r.RegisteredCount >= *r.TotalSeats
}

// MarshalJSON adds remainingSeats for resources with a seat ceiling.
func (r Resource) MarshalJSON() ([]byte, error) {
	type resource Resource
	out := struct {
		resource
		RemainingSeats *int `json:"remainingSeats,omitempty"`
	}{resource: resource(r)}
	if r.Bounded() {
		n := r.Remaining()
		out.RemainingSeats = &n
	}
	return json.Marshal(out)
}

// Ref returns the reference a registration uses to point at this resource.
func (r *Resource) Ref() ResourceRef {
	return ResourceRef{Kind: r.Kind, ID: r.ID}
}

// ResourceFilter narrows ListResources.
type ResourceFilter struct {
	Kind           ResourceKind
	IncludeDeleted bool
}

// CreateResourceRequest is the payload for creating a resource.
type CreateResourceRequest struct {
	Kind        ResourceKind `json:"kind" validate:"required,oneof=event course product"`
	Title       string       `json:"title" validate:"required,max=200"`
	Description string       `json:"description,omitempty" validate:"max=5000"`
	PricingType PricingType  `json:"pricingType" validate:"required,oneof=free paid"`
	Price       *float64     `json:"price,omitempty" validate:"omitempty,gte=0"`
	TotalSeats  *int         `json:"totalSeats,omitempty" validate:"omitempty,gte=1,lte=100000"`
}

// UpdateResourceRequest is the payload for editing a resource. The kind and
// the approved counter are not editable.
type UpdateResourceRequest struct {
	Title       string      `json:"title" validate:"required,max=200"`
	Description string      `json:"description,omitempty" validate:"max=5000"`
	PricingType PricingType `json:"pricingType" validate:"required,oneof=free paid"`
	Price       *float64    `json:"price,omitempty" validate:"omitempty,gte=0"`
	TotalSeats  *int        `json:"totalSeats,omitempty" validate:"omitempty,gte=1,lte=100000"`
}

// Response is the JSON envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}
