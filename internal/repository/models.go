package repository

import (
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
)

// CampaignModel is the persistence model for the campaigns table.
type CampaignModel struct {
	ID                  string                `gorm:"type:uuid;primaryKey"`
	UserID              string                `gorm:"type:varchar(64);not null;index"`
	ListID              string                `gorm:"type:uuid;not null"`
	Subject             string                `gorm:"type:varchar(998);not null"`
	HTMLContent         string                `gorm:"column:html_content;type:text;not null"`
	FromAddress         string                `gorm:"type:varchar(320);not null"`
	Status              domain.CampaignStatus `gorm:"type:varchar(20);not null"`
	WarmupEnabled       bool                  `gorm:"not null;default:false"`
	WarmupCurrentDay    int                   `gorm:"not null;default:0"`
	WarmupStartedAt     *time.Time            `gorm:"type:timestamptz"`
	WarmupPausedAt      *time.Time            `gorm:"type:timestamptz"`
	WarmupPauseReason   *string               `gorm:"type:text"`
	WarmupTotalContacts int                   `gorm:"not null;default:0"`
	WarmupLastBatchAt   *time.Time            `gorm:"type:timestamptz"`
	Version             int                   `gorm:"not null;default:0"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (CampaignModel) TableName() string {
	return "campaigns"
}

// QuotaModel is the persistence model for quota_records.
type QuotaModel struct {
	UserID          string    `gorm:"type:varchar(64);primaryKey"`
	EmailsSentToday int       `gorm:"not null;default:0"`
	MonthlyLimit    int       `gorm:"not null"`
	LastResetDate   time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt       time.Time
}

func (QuotaModel) TableName() string {
	return "quota_records"
}

// SendRecordModel is the persistence model for send_records. StatusRank mirrors
// domain.SendStatus.Rank so the never-downgrade rule can run inside one UPDATE.
type SendRecordModel struct {
	ID                string            `gorm:"type:uuid;primaryKey"`
	CampaignID        string            `gorm:"type:uuid;not null"`
	ContactID         int64             `gorm:"not null"`
	UserID            string            `gorm:"type:varchar(64);not null"`
	Recipient         string            `gorm:"type:varchar(320);not null"`
	ProviderMessageID *string           `gorm:"type:varchar(255)"`
	Status            domain.SendStatus `gorm:"type:varchar(20);not null"`
	StatusRank        int               `gorm:"not null;default:0"`
	Error             *string           `gorm:"type:text"`
	SentAt            *time.Time        `gorm:"type:timestamptz"`
	DeliveredAt       *time.Time        `gorm:"type:timestamptz"`
	DelayedAt         *time.Time        `gorm:"type:timestamptz"`
	BouncedAt         *time.Time        `gorm:"type:timestamptz"`
	BounceType        *string           `gorm:"type:varchar(32)"`
	BounceReason      *string           `gorm:"type:text"`
	OpenedAt          *time.Time        `gorm:"type:timestamptz"`
	OpenCount         int               `gorm:"not null;default:0"`
	ClickedAt         *time.Time        `gorm:"type:timestamptz"`
	ClickCount        int               `gorm:"not null;default:0"`
	LastClickURL      *string           `gorm:"column:last_click_url;type:text"`
	ComplainedAt      *time.Time        `gorm:"type:timestamptz"`
	UnsubscribedAt    *time.Time        `gorm:"type:timestamptz"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (SendRecordModel) TableName() string {
	return "send_records"
}

// EmailEventModel is the persistence model for the email_events audit table.
type EmailEventModel struct {
	ID                string            `gorm:"type:uuid;primaryKey"`
	SendRecordID      string            `gorm:"type:uuid;not null;index"`
	Provider          domain.Provider   `gorm:"type:varchar(20);not null"`
	ProviderEventType string            `gorm:"type:varchar(64);not null"`
	EventType         domain.EventType  `gorm:"type:varchar(32);not null"`
	OccurredAt        time.Time         `gorm:"type:timestamptz;not null"`
	Payload           map[string]string `gorm:"type:jsonb;serializer:json"`
	CreatedAt         time.Time
}

func (EmailEventModel) TableName() string {
	return "email_events"
}

// ContactModel is the persistence model for contacts.
type ContactModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	ListID       string `gorm:"type:uuid;not null"`
	Email        string `gorm:"type:varchar(320);not null"`
	Name         string `gorm:"type:varchar(255);not null;default:''"`
	Unsubscribed bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
}

func (ContactModel) TableName() string {
	return "contacts"
}

func campaignModelFromDomain(c *domain.Campaign) *CampaignModel {
	if c == nil {
		return nil
	}

	return &CampaignModel{
		ID:                  c.ID,
		UserID:              c.UserID,
		ListID:              c.ListID,
		Subject:             c.Subject,
		HTMLContent:         c.HTMLContent,
		FromAddress:         c.FromAddress,
		Status:              c.Status,
		WarmupEnabled:       c.WarmupEnabled,
		WarmupCurrentDay:    c.WarmupCurrentDay,
		WarmupStartedAt:     c.WarmupStartedAt,
		WarmupPausedAt:      c.WarmupPausedAt,
		WarmupPauseReason:   c.WarmupPauseReason,
		WarmupTotalContacts: c.WarmupTotalContacts,
		WarmupLastBatchAt:   c.WarmupLastBatchAt,
		Version:             c.Version,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

func campaignModelToDomain(m *CampaignModel) *domain.Campaign {
	if m == nil {
		return nil
	}

	return &domain.Campaign{
		ID:                  m.ID,
		UserID:              m.UserID,
		ListID:              m.ListID,
		Subject:             m.Subject,
		HTMLContent:         m.HTMLContent,
		FromAddress:         m.FromAddress,
		Status:              m.Status,
		WarmupEnabled:       m.WarmupEnabled,
		WarmupCurrentDay:    m.WarmupCurrentDay,
		WarmupStartedAt:     m.WarmupStartedAt,
		WarmupPausedAt:      m.WarmupPausedAt,
		WarmupPauseReason:   m.WarmupPauseReason,
		WarmupTotalContacts: m.WarmupTotalContacts,
		WarmupLastBatchAt:   m.WarmupLastBatchAt,
		Version:             m.Version,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func quotaModelFromDomain(r domain.QuotaRecord) QuotaModel {
	return QuotaModel{
		UserID:          r.UserID,
		EmailsSentToday: r.EmailsSentToday,
		MonthlyLimit:    r.MonthlyLimit,
		LastResetDate:   r.LastResetDate,
		UpdatedAt:       r.UpdatedAt,
	}
}

func quotaModelToDomain(m QuotaModel) domain.QuotaRecord {
	return domain.QuotaRecord{
		UserID:          m.UserID,
		EmailsSentToday: m.EmailsSentToday,
		MonthlyLimit:    m.MonthlyLimit,
		LastResetDate:   m.LastResetDate.UTC(),
		UpdatedAt:       m.UpdatedAt,
	}
}

func sendRecordModelFromDomain(r *domain.SendRecord) *SendRecordModel {
	if r == nil {
		return nil
	}

	return &SendRecordModel{
		ID:                r.ID,
		CampaignID:        r.CampaignID,
		ContactID:         r.ContactID,
		UserID:            r.UserID,
		Recipient:         r.Recipient,
		ProviderMessageID: r.ProviderMessageID,
		Status:            r.Status,
		StatusRank:        r.Status.Rank(),
		Error:             r.Error,
		SentAt:            r.SentAt,
		DeliveredAt:       r.DeliveredAt,
		DelayedAt:         r.DelayedAt,
		BouncedAt:         r.BouncedAt,
		BounceType:        r.BounceType,
		BounceReason:      r.BounceReason,
		OpenedAt:          r.OpenedAt,
		OpenCount:         r.OpenCount,
		ClickedAt:         r.ClickedAt,
		ClickCount:        r.ClickCount,
		LastClickURL:      r.LastClickURL,
		ComplainedAt:      r.ComplainedAt,
		UnsubscribedAt:    r.UnsubscribedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func sendRecordModelToDomain(m *SendRecordModel) *domain.SendRecord {
	if m == nil {
		return nil
	}

	return &domain.SendRecord{
		ID:                m.ID,
		CampaignID:        m.CampaignID,
		ContactID:         m.ContactID,
		UserID:            m.UserID,
		Recipient:         m.Recipient,
		ProviderMessageID: m.ProviderMessageID,
		Status:            m.Status,
		Error:             m.Error,
		SentAt:            m.SentAt,
		DeliveredAt:       m.DeliveredAt,
		DelayedAt:         m.DelayedAt,
		BouncedAt:         m.BouncedAt,
		BounceType:        m.BounceType,
		BounceReason:      m.BounceReason,
		OpenedAt:          m.OpenedAt,
		OpenCount:         m.OpenCount,
		ClickedAt:         m.ClickedAt,
		ClickCount:        m.ClickCount,
		LastClickURL:      m.LastClickURL,
		ComplainedAt:      m.ComplainedAt,
		UnsubscribedAt:    m.UnsubscribedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func emailEventModelFromDomain(e *domain.EmailEvent) *EmailEventModel {
	if e == nil {
		return nil
	}

	return &EmailEventModel{
		ID:                e.ID,
		SendRecordID:      e.SendRecordID,
		Provider:          e.Provider,
		ProviderEventType: e.ProviderEventType,
		EventType:         e.EventType,
		OccurredAt:        e.OccurredAt,
		Payload:           e.Payload,
		CreatedAt:         e.CreatedAt,
	}
}

func contactModelToDomain(m ContactModel) domain.Contact {
	return domain.Contact{
		ID:           m.ID,
		ListID:       m.ListID,
		Email:        m.Email,
		Name:         m.Name,
		Unsubscribed: m.Unsubscribed,
	}
}
