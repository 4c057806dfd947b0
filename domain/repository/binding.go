package repository

import (
	"context"

	"media-hub/domain/model"
)

// IBinding persists agent/account bindings. Upsert keys on the tuple
// (agent_id, platform, account_id) so re-applied projector events do not
// create duplicates.
type IBinding interface {
	Upsert(ctx context.Context, binding *model.AgentBinding) error
	Get(ctx context.Context, agentID, platform, accountID string) (*model.AgentBinding, error)
	ListByAgent(ctx context.Context, agentID string) ([]*model.AgentBinding, error)
	ListByAccount(ctx context.Context, platform, accountID string) ([]*model.AgentBinding, error)
	ListAgentIDsByOwner(ctx context.Context, owner string) ([]string, error)
	UpdateMetadata(ctx context.Context, platform, accountID string, account *model.PlatformAccount) error
	DeleteByAccount(ctx context.Context, platform, accountID string) error
}
