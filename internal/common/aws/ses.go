// Package aws holds the SES and SNS senders used for applicant
// notifications.
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// LoadConfig resolves credentials the usual AWS way for region.
func LoadConfig(ctx context.Context, region string) (awssdk.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return awssdk.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// SESAPI is the slice of the SES client the mailer calls.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Mailer sends plain-text UTF-8 email from one address.
type Mailer struct {
	api  SESAPI
	from string
}

func NewMailer(api SESAPI, from string) *Mailer {
	return &Mailer{api: api, from: from}
}

func NewSESMailer(cfg awssdk.Config, from string) *Mailer {
	return NewMailer(ses.NewFromConfig(cfg), from)
}

// SendEmail returns the SES message id.
func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) (string, error) {
	out, err := m.api.SendEmail(ctx, &ses.SendEmailInput{
		Source:      awssdk.String(m.from),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: awssdk.String(subject), Charset: awssdk.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: awssdk.String(body), Charset: awssdk.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return "", err
	}
	return awssdk.ToString(out.MessageId), nil
}
