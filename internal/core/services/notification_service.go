package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"shelftrack/internal/adapters/persistence/models"
)

// Notifier receives circulation events worth telling a user about
type Notifier interface {
	ReservationReady(ctx context.Context, reservation *models.Reservation) error
}

// NotificationService posts circulation events to a webhook. With no
// webhook configured every notification is a silent no-op.
type NotificationService struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// NewNotificationService creates a new notification service
func NewNotificationService(webhookURL string) *NotificationService {
	return &NotificationService{
		webhookURL: webhookURL,
		enabled:    webhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// IsEnabled checks if notification is enabled
func (s *NotificationService) IsEnabled() bool {
	return s.enabled
}

type webhookEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
	BookID  uint   `json:"bookId,omitempty"`
	UserID  uint   `json:"userId,omitempty"`
}

func (s *NotificationService) post(ctx context.Context, event webhookEvent) error {
	if !s.enabled {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// ReservationReady tells the holder their copy is ready for pickup
func (s *NotificationService) ReservationReady(ctx context.Context, reservation *models.Reservation) error {
	title := reservation.Book.Title
	message := fmt.Sprintf("📚 Your hold is ready: %s (reservation #%d). Please pick it up before %s.",
		title,
		reservation.ID,
		reservation.ExpirationDate.Format("2006-01-02"),
	)

	return s.post(ctx, webhookEvent{
		Event:   "reservation.ready",
		Message: message,
		BookID:  reservation.BookID,
		UserID:  reservation.UserID,
	})
}
