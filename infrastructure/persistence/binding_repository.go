package persistence

import (
	"context"
	"errors"
	"time"

	"media-hub/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BindingRepository persists agent/account bindings through GORM on MySQL.
type BindingRepository struct{ db *gorm.DB }

func NewBindingRepository(db *gorm.DB) *BindingRepository { return &BindingRepository{db: db} }

// Upsert keys on (agent_id, platform, account_id); re-applied projector
// events refresh metadata in place and never flip enabled on an existing row.
func (r *BindingRepository) Upsert(ctx context.Context, b *model.AgentBinding) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "agent_id"}, {Name: "platform"}, {Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"owner", "account_name", "account_handle", "avatar_url", "subscriber_count", "updated_at",
		}),
	}).Create(b).Error
}

func (r *BindingRepository) Get(ctx context.Context, agentID, platform, accountID string) (*model.AgentBinding, error) {
	var b model.AgentBinding
	err := r.db.WithContext(ctx).
		Where("agent_id = ? AND platform = ? AND account_id = ?", agentID, platform, accountID).
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewDomainError(model.KindNotFound, "binding not found")
		}
		return nil, err
	}
	return &b, nil
}

func (r *BindingRepository) ListByAgent(ctx context.Context, agentID string) ([]*model.AgentBinding, error) {
	var list []*model.AgentBinding
	err := r.db.WithContext(ctx).Where("agent_id = ?", agentID).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *BindingRepository) ListByAccount(ctx context.Context, platform, accountID string) ([]*model.AgentBinding, error) {
	var list []*model.AgentBinding
	err := r.db.WithContext(ctx).Where("platform = ? AND account_id = ?", platform, accountID).Find(&list).Error
	return list, err
}

func (r *BindingRepository) ListAgentIDsByOwner(ctx context.Context, owner string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.AgentBinding{}).
		Where("owner = ?", owner).Distinct().Pluck("agent_id", &ids).Error
	return ids, err
}

// UpdateMetadata refreshes denormalized display fields on every binding
// referencing the account without touching enabled.
func (r *BindingRepository) UpdateMetadata(ctx context.Context, platform, accountID string, account *model.PlatformAccount) error {
	return r.db.WithContext(ctx).Model(&model.AgentBinding{}).
		Where("platform = ? AND account_id = ?", platform, accountID).
		Updates(map[string]interface{}{
			"account_name":     account.Name,
			"account_handle":   account.Handle,
			"avatar_url":       account.AvatarURL,
			"subscriber_count": account.SubscriberCount,
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *BindingRepository) DeleteByAccount(ctx context.Context, platform, accountID string) error {
	return r.db.WithContext(ctx).
		Where("platform = ? AND account_id = ?", platform, accountID).
		Delete(&model.AgentBinding{}).Error
}
