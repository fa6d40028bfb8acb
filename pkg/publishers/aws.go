package publishers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// awsSendFunc delivers one message body with string attributes and returns
// the broker-assigned message id.
type awsSendFunc func(ctx context.Context, body string, attrs map[string]string) (string, error)

// awsSink publishes JSON events through an AWS messaging API. SQS and SNS
// differ only in their send function.
type awsSink struct {
	id     string
	typ    string
	target string
	send   awsSendFunc
	log    Logger
}

func (s *awsSink) ID() string   { return s.id }
func (s *awsSink) Type() string { return s.typ }

// Publish marshals the event and hands it to the send function.
func (s *awsSink) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msgID, err := s.send(ctx, string(payload), evt.Attributes())
	if err != nil {
		s.log.ErrorObj("aws publisher send failed", "publisher_aws_error", map[string]any{
			"publisher_id": s.id,
			"type":         s.typ,
			"target":       s.target,
			"error":        err.Error(),
		})
		return fmt.Errorf("send to %s %s: %w", s.typ, s.target, err)
	}

	s.log.DebugObj("aws publisher delivered event", "publisher_aws_delivery", map[string]any{
		"publisher_id": s.id,
		"type":         s.typ,
		"message_id":   msgID,
	})
	return nil
}

// loadAWSConfig resolves the AWS configuration for a region, preferring
// static credentials when they are supplied.
func loadAWSConfig(ctx context.Context, region string, creds *AWSCredentials) (aws.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(region)}
	if creds != nil && creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		provider := credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
		opts = append(opts, awscfg.WithCredentialsProvider(provider))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
