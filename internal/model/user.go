package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// User stores Telegram user metadata and the request history counters.
type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ChatID       *int64 `gorm:"column:chat_id" json:"chat_id"`
	Name         string `gorm:"column:name;not null" json:"name"`
	RequestCount int64  `gorm:"column:requests_amount;not null;default:0" json:"requests_amount"`
	LastSeenAt   int64  `gorm:"column:timestamp;not null" json:"timestamp"`
	RegisteredAt int64  `gorm:"column:register_timestamp;not null" json:"register_timestamp"`
}

// TableName keeps the table name stable across backends.
func (User) TableName() string {
	return "users"
}

// Field names a user column. Values match the persisted column names.
type Field string

const (
	FieldID           Field = "id"
	FieldChatID       Field = "chat_id"
	FieldName         Field = "name"
	FieldRequestCount Field = "requests_amount"
	FieldLastSeenAt   Field = "timestamp"
	FieldRegisteredAt Field = "register_timestamp"
)

// Mutable reports whether SetField may target the field.
func (f Field) Mutable() bool {
	switch f {
	case FieldName, FieldRequestCount, FieldLastSeenAt, FieldChatID:
		return true
	default:
		return false
	}
}

// ParseValue converts a raw value into the Go type stored for the field.
// An empty chat id clears it.
func (f Field) ParseValue(raw string) (any, error) {
	switch f {
	case FieldName:
		return raw, nil
	case FieldChatID:
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return (*int64)(nil), nil
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		return &v, nil
	case FieldRequestCount, FieldLastSeenAt:
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("%s must not be negative", f)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("field %q is not writable", f)
	}
}

// Apply writes an already parsed value into u.
func (u *User) Apply(f Field, value any) {
	switch f {
	case FieldName:
		u.Name = value.(string)
	case FieldChatID:
		u.ChatID = value.(*int64)
	case FieldRequestCount:
		u.RequestCount = value.(int64)
	case FieldLastSeenAt:
		u.LastSeenAt = value.(int64)
	}
}

// Stats aggregates store-wide counters.
type Stats struct {
	Users    int64 `json:"users"`
	Requests int64 `json:"requests"`
}

// Millis converts t to a millisecond epoch timestamp.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// DaysBetween returns whole days elapsed from one millisecond timestamp to another.
func DaysBetween(fromMillis, toMillis int64) int64 {
	const day = int64(24 * time.Hour / time.Millisecond)
	if toMillis <= fromMillis {
		return 0
	}
	return (toMillis - fromMillis) / day
}
