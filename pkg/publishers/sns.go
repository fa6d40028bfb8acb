package publishers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// snsClient defines the minimal subset of the SNS client used by the sink.
type snsClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func newSNSPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.SNS == nil {
		return nil, fmt.Errorf("publisher %q missing sns configuration", cfg.ID)
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.SNS.Region, cfg.SNS.Credentials)
	if err != nil {
		return nil, err
	}
	endpoint := cfg.SNS.Endpoint
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return newSNSSink(cfg.ID, cfg.SNS.TopicARN, client, log), nil
}

// newSNSSink publishes each event as one notification on topicARN.
func newSNSSink(id, topicARN string, client snsClient, log Logger) *awsSink {
	return &awsSink{
		id:     id,
		typ:    TypeSNS,
		target: topicARN,
		log:    ensureLogger(log),
		send: func(ctx context.Context, body string, attrs map[string]string) (string, error) {
			msgAttrs := make(map[string]types.MessageAttributeValue, len(attrs))
			for k, v := range attrs {
				msgAttrs[k] = types.MessageAttributeValue{
					DataType:    aws.String("String"),
					StringValue: aws.String(v),
				}
			}
			out, err := client.Publish(ctx, &sns.PublishInput{
				TopicArn:          aws.String(topicARN),
				Message:           aws.String(body),
				MessageAttributes: msgAttrs,
			})
			if err != nil {
				return "", err
			}
			return aws.ToString(out.MessageId), nil
		},
	}
}
