package servicebus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"media-hub/domain/model"
	"media-hub/infrastructure/logger"
)

// AccountEventType marks projector actions published to downstream systems.
type AccountEventType string

const (
	AccountConnected AccountEventType = "account_connected"
	AccountUpdated   AccountEventType = "account_updated"
	AccountRemoved   AccountEventType = "account_removed"
)

// AccountEvent is the message body for account lifecycle notifications.
type AccountEvent struct {
	Type       AccountEventType `json:"type"`
	Platform   string           `json:"platform"`
	AccountID  string           `json:"account_id"`
	Owner      string           `json:"owner,omitempty"`
	Name       string           `json:"name,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// IAccountEvents publishes account lifecycle events.
type IAccountEvents interface {
	Publish(ctx context.Context, evt AccountEvent) error
}

// AccountEvents sends events to an Azure Service Bus queue. A nil client
// degrades to a no-op.
type AccountEvents struct {
	client *azservicebus.Client
	queue  string
}

func NewAccountEvents(client *azservicebus.Client, queue string) IAccountEvents {
	if queue == "" {
		queue = "account-events"
	}
	return &AccountEvents{client: client, queue: queue}
}

// NewServiceBus instantiates the Service Bus client for the configured namespace.
func NewServiceBus(ctx context.Context, namespace string) (*azservicebus.Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

func (e *AccountEvents) Publish(ctx context.Context, evt AccountEvent) error {
	if e.client == nil {
		return nil
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	sender, err := e.client.NewSender(e.queue, nil)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while making new sender service bus.")
		return err
	}
	defer func() {
		if cerr := sender.Close(ctx); cerr != nil {
			logger.GetLogger().WithField("error", cerr).Error("Error while closing sender.")
		}
	}()
	return sender.SendMessage(ctx, &azservicebus.Message{Body: body}, nil)
}

// FromAccount builds an event from an account record.
func FromAccount(t AccountEventType, a *model.PlatformAccount) AccountEvent {
	return AccountEvent{
		Type:       t,
		Platform:   a.Platform,
		AccountID:  a.ID,
		Owner:      a.Owner,
		Name:       a.Name,
		OccurredAt: time.Now().UTC(),
	}
}
