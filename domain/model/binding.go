package model

import "time"

// DefaultAgentID is the well-known agent configuration that implicitly exists
// for every user. The projector fans out to it alongside the user's own agents.
const DefaultAgentID = "agent-default"

// AgentBinding binds an agent configuration to a connected platform account.
// Identity is the tuple (agent_id, platform, account_id); display metadata is
// denormalized from the source account for fast rendering.
type AgentBinding struct {
	ID              int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	AgentID         string    `json:"agent_id" gorm:"column:agent_id;uniqueIndex:idx_agent_platform_account;size:64"`
	Platform        string    `json:"platform" gorm:"column:platform;uniqueIndex:idx_agent_platform_account;size:32"`
	AccountID       string    `json:"account_id" gorm:"column:account_id;uniqueIndex:idx_agent_platform_account;size:128"`
	Owner           string    `json:"owner" gorm:"column:owner;index;size:64"`
	Enabled         bool      `json:"enabled" gorm:"column:enabled"`
	AccountName     string    `json:"account_name" gorm:"column:account_name"`
	AccountHandle   string    `json:"account_handle" gorm:"column:account_handle"`
	AvatarURL       string    `json:"avatar_url" gorm:"column:avatar_url"`
	SubscriberCount int64     `json:"subscriber_count" gorm:"column:subscriber_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName keeps the legacy table name used by the dashboard.
func (AgentBinding) TableName() string { return "agent_account_bindings" }

// QualifiedID is the deduplication key used by the merge rule.
func (b *AgentBinding) QualifiedID() string {
	return b.Platform + ":" + b.AccountID
}
