// internal/common/aws/sns.go
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSClient publishes transactional SMS messages.
type SNSClient struct {
	client   *sns.Client
	senderID string
}

func NewSNSClient(ctx context.Context, region, senderID string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSClient{client: sns.NewFromConfig(cfg), senderID: senderID}, nil
}

func (s *SNSClient) Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return s.client.Publish(ctx, input, optFns...)
}

// SendSMS publishes text to a phone number as a transactional message.
func (s *SNSClient) SendSMS(ctx context.Context, phone, text string) error {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}
	_, err := s.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(text),
		MessageAttributes: attrs,
	})
	return err
}
