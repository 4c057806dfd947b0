package usecase

import (
	"context"
	"time"

	"media-hub/domain/dto"
	"media-hub/domain/model"
	"media-hub/domain/repository"
	"media-hub/infrastructure/logger"
	"media-hub/infrastructure/servicebus"
)

// IProjectorUsecase fans connected-account changes out to agent
// configurations and publishes the corresponding lifecycle events.
type IProjectorUsecase interface {
	// OnAccountConnected binds the account to every agent of the owner plus
	// the default agent. Existing bindings keep their enabled flag.
	OnAccountConnected(ctx context.Context, account *model.PlatformAccount) error
	// OnAccountUpdated refreshes denormalized display metadata on all
	// bindings referencing the account.
	OnAccountUpdated(ctx context.Context, account *model.PlatformAccount) error
	// OnAccountRemoved deletes every binding referencing the account.
	OnAccountRemoved(ctx context.Context, owner, platform, accountID string) error
	// MergeBindings assembles the effective session bindings for an agent:
	// stored configuration unioned with runtime selections, where a runtime
	// entry overrides enabled only.
	MergeBindings(ctx context.Context, agentID string, runtime []dto.RuntimeBinding) ([]*model.AgentBinding, error)
}

type projectorUsecase struct {
	bindingRepo repository.IBinding
	events      servicebus.IAccountEvents
}

func NewProjectorUsecase(bindingRepo repository.IBinding, events servicebus.IAccountEvents) IProjectorUsecase {
	return &projectorUsecase{bindingRepo: bindingRepo, events: events}
}

func (u *projectorUsecase) OnAccountConnected(ctx context.Context, account *model.PlatformAccount) error {
	agentIDs, err := u.bindingRepo.ListAgentIDsByOwner(ctx, account.Owner)
	if err != nil {
		return err
	}
	seen := map[string]struct{}{model.DefaultAgentID: {}}
	targets := []string{model.DefaultAgentID}
	for _, id := range agentIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}

	now := time.Now().UTC()
	for _, agentID := range targets {
		binding := &model.AgentBinding{
			AgentID:         agentID,
			Platform:        account.Platform,
			AccountID:       account.ID,
			Owner:           account.Owner,
			Enabled:         true,
			AccountName:     account.Name,
			AccountHandle:   account.Handle,
			AvatarURL:       account.AvatarURL,
			SubscriberCount: account.SubscriberCount,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := u.bindingRepo.Upsert(ctx, binding); err != nil {
			return err
		}
	}
	logger.GetLogger().
		WithField("account_id", account.ID).
		WithField("platform", account.Platform).
		WithField("agents", len(targets)).
		Info("Account fanned out to agent configurations")
	u.publish(ctx, servicebus.FromAccount(servicebus.AccountConnected, account))
	return nil
}

func (u *projectorUsecase) OnAccountUpdated(ctx context.Context, account *model.PlatformAccount) error {
	if err := u.bindingRepo.UpdateMetadata(ctx, account.Platform, account.ID, account); err != nil {
		return err
	}
	u.publish(ctx, servicebus.FromAccount(servicebus.AccountUpdated, account))
	return nil
}

func (u *projectorUsecase) OnAccountRemoved(ctx context.Context, owner, platform, accountID string) error {
	if err := u.bindingRepo.DeleteByAccount(ctx, platform, accountID); err != nil {
		return err
	}
	u.publish(ctx, servicebus.AccountEvent{
		Type:      servicebus.AccountRemoved,
		Platform:  platform,
		AccountID: accountID,
		Owner:     owner,
	})
	return nil
}

func (u *projectorUsecase) MergeBindings(ctx context.Context, agentID string, runtime []dto.RuntimeBinding) ([]*model.AgentBinding, error) {
	stored, err := u.bindingRepo.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	merged := make([]*model.AgentBinding, 0, len(stored)+len(runtime))
	index := make(map[string]*model.AgentBinding, len(stored))
	for _, b := range stored {
		copied := *b
		merged = append(merged, &copied)
		index[copied.QualifiedID()] = &copied
	}
	for _, rb := range runtime {
		key := rb.Platform + ":" + rb.AccountID
		if existing, ok := index[key]; ok {
			existing.Enabled = rb.Enabled
			continue
		}
		added := &model.AgentBinding{
			AgentID:   agentID,
			Platform:  rb.Platform,
			AccountID: rb.AccountID,
			Enabled:   rb.Enabled,
		}
		merged = append(merged, added)
		index[key] = added
	}
	return merged, nil
}

func (u *projectorUsecase) publish(ctx context.Context, evt servicebus.AccountEvent) {
	if u.events == nil {
		return
	}
	if err := u.events.Publish(ctx, evt); err != nil {
		logger.GetLogger().
			WithField("type", string(evt.Type)).
			WithField("account_id", evt.AccountID).
			WithField("error", err).
			Warn("Error while publishing account event")
	}
}
