package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog records a state change made by the legacy workflow.
type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Actor      string          `json:"actor" db:"actor"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   string          `json:"entity_id" db:"entity_id"`
	Changes    json.RawMessage `json:"changes,omitempty" db:"changes"`
	Metadata   json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	AuditActionApprove     = "approve"
	AuditActionReject      = "reject"
	AuditActionConfirm     = "confirm"
	AuditActionMarkDead    = "mark_deceased"
	AuditActionNotify      = "notify_testigo"
	AuditActionPublish     = "publish_legacy"
	AuditActionMessageSent = "message_sent"
	AuditActionPremium     = "premium"
	AuditActionLogin       = "login"

	AuditEntityCertificate = "certificate"
	AuditEntityUser        = "user"
	AuditEntityMessage     = "scheduled_message"
	AuditEntityOperator    = "operator"

	// AuditActorSystem is recorded for changes made by background workers.
	AuditActorSystem = "system"
)

// AuditFilter narrows an audit log listing.
type AuditFilter struct {
	EntityType string `form:"entity_type"`
	EntityID   string `form:"entity_id"`
	Action     string `form:"action"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=500"`
}
