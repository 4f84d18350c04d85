package domain

import "time"

// SendStatus is the delivery state of one email sent to one contact.
type SendStatus string

const (
	SendStatusQueued       SendStatus = "queued"
	SendStatusFailed       SendStatus = "failed"
	SendStatusSent         SendStatus = "sent"
	SendStatusDelayed      SendStatus = "delayed"
	SendStatusDelivered    SendStatus = "delivered"
	SendStatusOpened       SendStatus = "opened"
	SendStatusClicked      SendStatus = "clicked"
	SendStatusBounced      SendStatus = "bounced"
	SendStatusComplained   SendStatus = "complained"
	SendStatusUnsubscribed SendStatus = "unsubscribed"
)

func (s SendStatus) String() string { return string(s) }

// Rank orders statuses so that a late event never downgrades a record,
// e.g. a delayed "delivered" webhook after "opened".
func (s SendStatus) Rank() int {
	switch s {
	case SendStatusQueued:
		return 0
	case SendStatusFailed:
		return 1
	case SendStatusSent:
		return 2
	case SendStatusDelayed:
		return 3
	case SendStatusDelivered:
		return 4
	case SendStatusOpened:
		return 5
	case SendStatusClicked:
		return 6
	case SendStatusBounced, SendStatusUnsubscribed:
		return 7
	case SendStatusComplained:
		return 8
	}
	return -1
}

// SendRecord tracks one outbound campaign email and its engagement.
type SendRecord struct {
	ID                string
	CampaignID        string
	ContactID         int64
	UserID            string
	Recipient         string
	ProviderMessageID *string
	Status            SendStatus
	Error             *string
	SentAt            *time.Time
	DeliveredAt       *time.Time
	DelayedAt         *time.Time
	BouncedAt         *time.Time
	BounceType        *string
	BounceReason      *string
	OpenedAt          *time.Time
	OpenCount         int
	ClickedAt         *time.Time
	ClickCount        int
	LastClickURL      *string
	ComplainedAt      *time.Time
	UnsubscribedAt    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SendRecordUpdate describes the change an event makes to a send record.
// Timestamp fields are first-write-wins; counters are increments.
type SendRecordUpdate struct {
	Status         *SendStatus
	SentAt         *time.Time
	DeliveredAt    *time.Time
	DelayedAt      *time.Time
	BouncedAt      *time.Time
	BounceType     *string
	BounceReason   *string
	OpenedAt       *time.Time
	IncrementOpen  bool
	ClickedAt      *time.Time
	IncrementClick bool
	LastClickURL   *string
	ComplainedAt   *time.Time
	UnsubscribedAt *time.Time
}

func (u SendRecordUpdate) IsEmpty() bool {
	return u == SendRecordUpdate{}
}

// Apply returns the record with the update applied using the same rules the
// repository enforces in SQL.
func (r SendRecord) Apply(u SendRecordUpdate) SendRecord {
	next := r
	if u.Status != nil && u.Status.Rank() > next.Status.Rank() {
		next.Status = *u.Status
	}
	next.SentAt = firstTime(next.SentAt, u.SentAt)
	next.DeliveredAt = firstTime(next.DeliveredAt, u.DeliveredAt)
	next.DelayedAt = firstTime(next.DelayedAt, u.DelayedAt)
	next.BouncedAt = firstTime(next.BouncedAt, u.BouncedAt)
	next.OpenedAt = firstTime(next.OpenedAt, u.OpenedAt)
	next.ClickedAt = firstTime(next.ClickedAt, u.ClickedAt)
	next.ComplainedAt = firstTime(next.ComplainedAt, u.ComplainedAt)
	next.UnsubscribedAt = firstTime(next.UnsubscribedAt, u.UnsubscribedAt)
	if u.BounceType != nil {
		next.BounceType = u.BounceType
	}
	if u.BounceReason != nil {
		next.BounceReason = u.BounceReason
	}
	if u.LastClickURL != nil {
		next.LastClickURL = u.LastClickURL
	}
	if u.IncrementOpen {
		next.OpenCount++
	}
	if u.IncrementClick {
		next.ClickCount++
	}
	return next
}

func firstTime(current *time.Time, candidate *time.Time) *time.Time {
	if current != nil {
		return current
	}
	return candidate
}
