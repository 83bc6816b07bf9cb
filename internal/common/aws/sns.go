package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the slice of the SNS client the SMS sender calls.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSSender publishes transactional text messages straight to a phone
// number.
type SMSSender struct {
	api SNSAPI
}

func NewSMSSender(api SNSAPI) *SMSSender {
	return &SMSSender{api: api}
}

func NewSNSSender(cfg awssdk.Config) *SMSSender {
	return NewSMSSender(sns.NewFromConfig(cfg))
}

// SendSMS returns the SNS message id.
func (s *SMSSender) SendSMS(ctx context.Context, phone, message string) (string, error) {
	out, err := s.api.Publish(ctx, &sns.PublishInput{
		PhoneNumber: awssdk.String(phone),
		Message:     awssdk.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String("Transactional"),
			},
		},
	})
	if err != nil {
		return "", err
	}
	return awssdk.ToString(out.MessageId), nil
}
