package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/enrollhub/internal/model"
	"github.com/Shivanand-hulikatti/enrollhub/internal/repository"
	"github.com/google/uuid"
)

// NotificationService exposes a user's notifications.
type NotificationService struct {
	store repository.Store
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(store repository.Store) *NotificationService {
	return &NotificationService{store: store}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]model.Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalidf("user id is required")
	}
	out, err := s.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, wrap("list notifications", err)
	}
	return out, nil
}

// MarkRead flags one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(id) == "" {
		return invalidf("user id and notification id are required")
	}
	if err := s.store.MarkNotificationRead(ctx, userID, id); err != nil {
		return wrap("mark notification read", err)
	}
	return nil
}

// approvalNotification builds the message a user gets when a registration
// against res is approved.
func approvalNotification(res *model.Resource, userID string) *model.Notification {
	var title, message, link string
	switch res.Kind {
	case model.KindEvent:
		title = "Registration approved"
		message = fmt.Sprintf("Your registration for %q has been approved. See you there!", res.Title)
		link = "/events/" + res.ID
	case model.KindCourse:
		title = "Course access granted"
		message = fmt.Sprintf("Your enrollment in %q has been approved. You can start learning now.", res.Title)
		link = "/courses/" + res.ID + "/learn"
	default:
		title = "Purchase confirmed"
		message = fmt.Sprintf("Your payment for %q has been verified.", res.Title)
		link = "/products/" + res.ID
	}

	return &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Link:      &link,
		CreatedAt: time.Now().UTC(),
	}
}
