package events

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"sigauth/internal/common/errors"
)

// snsAPI is the part of *sns.Client the publisher uses.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher sends events to an SNS topic with the type, appid and code
// as message attributes for subscription filters.
type SNSPublisher struct {
	client   snsAPI
	topicARN string
}

// NewSNSPublisher loads AWS credentials from the default chain.
func NewSNSPublisher(ctx context.Context, region, topicARN string) (*SNSPublisher, error) {
	if topicARN == "" {
		return nil, errors.ConfigError("SNS_TOPIC_ARN is required for sns events")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to load AWS config", err)
	}

	return &SNSPublisher{client: sns.NewFromConfig(awsCfg), topicARN: topicARN}, nil
}

// Publish sends event as the JSON message body.
func (p *SNSPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.InternalError("failed to marshal event", err)
	}

	attributes := map[string]snsTypes.MessageAttributeValue{
		"Type": {
			DataType:    aws.String("String"),
			StringValue: aws.String(event.Type),
		},
		"Code": {
			DataType:    aws.String("Number"),
			StringValue: aws.String(strconv.Itoa(event.Code)),
		},
	}
	if event.AppID != "" {
		attributes["AppID"] = snsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(event.AppID),
		}
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(p.topicARN),
		Message:           aws.String(string(body)),
		MessageAttributes: attributes,
	})
	if err != nil {
		return errors.ConnectionError("failed to publish event to SNS", err)
	}
	return nil
}

// Close is a no-op; the SNS client holds no connection.
func (p *SNSPublisher) Close() error { return nil }
