package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"alcyxob/video-catalog/internal/config"
	"alcyxob/video-catalog/internal/leaderboard"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

const (
	maxReceive     = 10 // SQS upper bound per ReceiveMessage
	receiveBackoff = 5 * time.Second
)

// sqsAPI is the subset of *sqs.Client used here.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// NewSQSClient builds an SQS client. Credentials come from the default AWS chain.
func NewSQSClient(ctx context.Context, cfg config.EventsConfig) (*sqs.Client, error) {
	var loadOpts []func(*awsCfg.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsCfg.WithRegion(cfg.Region))
	}
	awsSDKConfig, err := awsCfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config for sqs: %w", err)
	}
	return sqs.NewFromConfig(awsSDKConfig, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// SQSPublisher is a Recorder that forwards views to a queue, one message per
// video. Wrap it in an AsyncSink to keep SendMessage off the request path.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
	now      func() time.Time
}

// NewSQSPublisher creates a publisher for queueURL.
func NewSQSPublisher(client sqsAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL, now: time.Now}
}

func (p *SQSPublisher) Record(ctx context.Context, views []leaderboard.Increment) error {
	var errs []error
	for _, v := range views {
		body, err := json.Marshal(Event{
			Type:       TypeVideoViewed,
			VideoID:    v.VideoID,
			Count:      v.By,
			OccurredAt: p.now().UTC(),
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("send view event for %s: %w", v.VideoID, err))
		}
	}
	return errors.Join(errs...)
}

// SQSConsumer long-polls the queue and applies each received batch of view
// events through a Recorder. Messages are deleted once handled; failed
// updates are logged by the recorder rather than redelivered, so a partly
// applied batch is never counted twice.
type SQSConsumer struct {
	client      sqsAPI
	queueURL    string
	waitSeconds int32
	recorder    Recorder
}

// NewSQSConsumer creates a consumer. waitSeconds is the long-poll duration (max 20).
func NewSQSConsumer(client sqsAPI, queueURL string, waitSeconds int32, recorder Recorder) *SQSConsumer {
	if waitSeconds < 0 || waitSeconds > 20 {
		waitSeconds = 20
	}
	return &SQSConsumer{client: client, queueURL: queueURL, waitSeconds: waitSeconds, recorder: recorder}
}

// Run polls until ctx is cancelled.
func (c *SQSConsumer) Run(ctx context.Context) {
	log.Printf("INFO: View event consumer polling %s", c.queueURL)
	for {
		if ctx.Err() != nil {
			log.Println("INFO: View event consumer stopped")
			return
		}
		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("ERROR: Receive view events: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(receiveBackoff):
			}
		}
	}
}

// poll handles one ReceiveMessage round.
func (c *SQSConsumer) poll(ctx context.Context) error {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: maxReceive,
		WaitTimeSeconds:     c.waitSeconds,
	})
	if err != nil {
		return err
	}
	if len(out.Messages) == 0 {
		return nil
	}

	views := make([]leaderboard.Increment, 0, len(out.Messages))
	for _, m := range out.Messages {
		event, err := decodeEvent(aws.ToString(m.Body))
		if err != nil {
			log.Printf("WARN: Dropping malformed view event %s: %v", aws.ToString(m.MessageId), err)
			continue
		}
		views = append(views, leaderboard.Increment{VideoID: event.VideoID, By: event.Count})
	}

	// Errors are already logged per video.
	_ = c.recorder.Record(ctx, Coalesce(views))

	for _, m := range out.Messages {
		_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(c.queueURL),
			ReceiptHandle: m.ReceiptHandle,
		})
		if err != nil {
			log.Printf("WARN: Failed to delete view event %s: %v", aws.ToString(m.MessageId), err)
		}
	}
	return nil
}

func decodeEvent(body string) (Event, error) {
	var event Event
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		return Event{}, err
	}
	if event.Type != TypeVideoViewed {
		return Event{}, fmt.Errorf("unexpected event type %q", event.Type)
	}
	if event.VideoID == "" {
		return Event{}, errors.New("missing videoId")
	}
	if event.Count <= 0 {
		event.Count = 1
	}
	return event, nil
}
