package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/models"
	"github.com/pinkypartner/pinkypartner/internal/notifications"
	apperrors "github.com/pinkypartner/pinkypartner/pkg/errors"
	"github.com/pinkypartner/pinkypartner/pkg/logger"
	"github.com/pinkypartner/pinkypartner/pkg/metrics"
)

// Notice types emitted by the workflows.
const (
	NoticeMemberJoined    = "member_joined"
	NoticeMemberSigned    = "member_signed"
	NoticeMemberOptedOut  = "member_opted_out"
	NoticePartnerResponse = "partner_response"
	NoticeNudge           = "nudge"
	NoticeDailyReminder   = "daily_reminder"
	NoticeContractEnding  = "contract_ending"
	NoticeContractDeleted = "contract_deleted"
)

const (
	notificationListLimit  = 25
	notificationListMaxCap = 100
)

// Notice describes one notification to fan out to several recipients.
type Notice struct {
	Type         string
	ContractID   string
	RecipientIDs []string
	Title        string
	Body         string
	Image        string
	Metadata     map[string]any
}

// Notifier is the best effort notification sink used by the workflows. Implementations
// must not block the caller on delivery failures.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notice) {}

// NotificationService persists in-app notifications and hands them to the dispatcher.
type NotificationService struct {
	db         *gorm.DB
	dispatcher notifications.Dispatcher
	log        *zap.Logger
}

// NewNotificationService constructs a NotificationService. A nil dispatcher keeps
// notifications in-app only.
func NewNotificationService(db *gorm.DB, dispatcher notifications.Dispatcher) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{
		db:         db,
		dispatcher: dispatcher,
		log:        logger.WithModule("notifications"),
	}, nil
}

// Notify implements Notifier. Failures are logged and counted, never returned.
func (s *NotificationService) Notify(ctx context.Context, notice Notice) {
	ctx = ensureContext(ctx)

	for _, userID := range normaliseIDs(notice.RecipientIDs) {
		err := s.deliver(ctx, userID, notice)
		metrics.NotificationsSent.WithLabelValues(notice.Type, resultLabel(err)).Inc()
		if err != nil {
			s.log.Warn("notification delivery failed",
				zap.String("type", notice.Type),
				zap.String("user_id", userID),
				zap.String("contract_id", notice.ContractID),
				zap.Error(err),
			)
		}
	}
}

func (s *NotificationService) deliver(ctx context.Context, userID string, notice Notice) error {
	var user models.User
	if err := s.db.WithContext(ctx).
		Select("id", "web_push_token", "mobile_push_token").
		First(&user, "id = ?", userID).Error; err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}

	record := models.Notification{
		UserID: userID,
		Type:   notice.Type,
		Title:  notice.Title,
		Body:   notice.Body,
		Image:  notice.Image,
	}
	if notice.ContractID != "" {
		contractID := notice.ContractID
		record.ContractID = &contractID
	}
	if len(notice.Metadata) > 0 {
		raw, err := json.Marshal(notice.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		record.Metadata = datatypes.JSON(raw)
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	if s.dispatcher == nil {
		return nil
	}
	return s.dispatcher.Send(ctx, notifications.Message{
		RecipientUserID: userID,
		Type:            notice.Type,
		Title:           notice.Title,
		Body:            notice.Body,
		Image:           notice.Image,
		ContractID:      notice.ContractID,
		Data:            map[string]any{"notification_id": record.ID},
	}, notifications.Tokens{Web: user.WebPushToken, Mobile: user.MobilePushToken})
}

// NotificationPageSize clamps a requested page size to the supported range.
func NotificationPageSize(limit int) int {
	if limit <= 0 || limit > notificationListMaxCap {
		return notificationListLimit
	}
	return limit
}

// CountForUser returns how many notifications the user has in total.
func (s *NotificationService) CountForUser(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count notifications: %w", err)
	}
	return count, nil
}

// ListForUser returns the user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}
	limit = NotificationPageSize(limit)

	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(max(0, offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}
	return rows, nil
}

// CountUnread returns the number of unread notifications of a user.
func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

// MarkRead flags a notification owned by the user as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if result.Error != nil {
		return fmt.Errorf("notification service: mark read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// MarkAllRead flags every unread notification of the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	if err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": now}).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}
	return nil
}
