package pubsub

import (
	"context"
	"encoding/json"
	"strconv"

	"cloud.google.com/go/pubsub"

	"media-hub/domain/dto"
	"media-hub/infrastructure/logger"
)

// IStatusPublisher publishes status snapshots to a job-scoped topic for
// external push consumers. Each message carries the full snapshot plus a
// version attribute so late deliveries can be discarded.
type IStatusPublisher interface {
	PublishStatus(ctx context.Context, snap *dto.UploadStatusResponse) error
}

// StatusPublisher fans snapshots out through Google Cloud Pub/Sub. A nil
// client degrades to a no-op so environments without Pub/Sub keep working.
type StatusPublisher struct {
	client      *pubsub.Client
	topicPrefix string
}

func NewStatusPublisher(client *pubsub.Client, topicPrefix string) IStatusPublisher {
	if topicPrefix == "" {
		topicPrefix = "upload-status"
	}
	return &StatusPublisher{client: client, topicPrefix: topicPrefix}
}

// NewPubSub instantiates the Pub/Sub client for the configured project.
func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	return pubsub.NewClient(ctx, projectID)
}

func (p *StatusPublisher) PublishStatus(ctx context.Context, snap *dto.UploadStatusResponse) error {
	if p.client == nil || snap == nil {
		return nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	topicName := p.topicPrefix + "-" + snap.JobID
	topic := p.client.Topic(topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		if topic, err = p.client.CreateTopic(ctx, topicName); err != nil {
			return err
		}
	}
	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"job_id":  snap.JobID,
			"version": strconv.FormatInt(snap.Version, 10),
			"status":  snap.Status,
		},
	}
	serverID, err := topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return err
	}
	logger.GetLogger().WithField("job_id", snap.JobID).WithField("server_id", serverID).Debug("Status snapshot published")
	return nil
}
