package publishers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sqsClient defines the minimal subset of the SQS client used by the sink.
type sqsClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

func newSQSPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.SQS == nil {
		return nil, fmt.Errorf("publisher %q missing sqs configuration", cfg.ID)
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.SQS.Region, cfg.SQS.Credentials)
	if err != nil {
		return nil, err
	}
	endpoint := cfg.SQS.Endpoint
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return newSQSSink(cfg.ID, cfg.SQS.QueueURL, client, log), nil
}

// newSQSSink sends each event as one message on queueURL.
func newSQSSink(id, queueURL string, client sqsClient, log Logger) *awsSink {
	return &awsSink{
		id:     id,
		typ:    TypeSQS,
		target: queueURL,
		log:    ensureLogger(log),
		send: func(ctx context.Context, body string, attrs map[string]string) (string, error) {
			msgAttrs := make(map[string]types.MessageAttributeValue, len(attrs))
			for k, v := range attrs {
				msgAttrs[k] = types.MessageAttributeValue{
					DataType:    aws.String("String"),
					StringValue: aws.String(v),
				}
			}
			out, err := client.SendMessage(ctx, &sqs.SendMessageInput{
				QueueUrl:          aws.String(queueURL),
				MessageBody:       aws.String(body),
				MessageAttributes: msgAttrs,
			})
			if err != nil {
				return "", err
			}
			return aws.ToString(out.MessageId), nil
		},
	}
}
