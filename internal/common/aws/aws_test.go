package aws

import (
	"context"
	"errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSES struct {
	mock.Mock
}

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if out, ok := args.Get(0).(*ses.SendEmailOutput); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSNS struct {
	mock.Mock
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if out, ok := args.Get(0).(*sns.PublishOutput); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestMailer_SendEmail(t *testing.T) {
	api := new(mockSES)
	api.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return awssdk.ToString(in.Source) == "no-reply@support.example.org" &&
			in.Destination.ToAddresses[0] == "fatima@example.com" &&
			awssdk.ToString(in.Message.Subject.Data) == "Subject" &&
			awssdk.ToString(in.Message.Body.Text.Charset) == "UTF-8"
	})).Return(&ses.SendEmailOutput{MessageId: awssdk.String("ses-1")}, nil)

	id, err := NewMailer(api, "no-reply@support.example.org").SendEmail(context.Background(), "fatima@example.com", "Subject", "Body")
	require.NoError(t, err)
	assert.Equal(t, "ses-1", id)
	api.AssertExpectations(t)
}

func TestMailer_SendEmailError(t *testing.T) {
	api := new(mockSES)
	api.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("MessageRejected"))

	_, err := NewMailer(api, "from@example.org").SendEmail(context.Background(), "to@example.org", "s", "b")
	assert.EqualError(t, err, "MessageRejected")
}

func TestSMSSender_SendSMS(t *testing.T) {
	api := new(mockSNS)
	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		attr := in.MessageAttributes["AWS.SNS.SMS.SMSType"]
		return awssdk.ToString(in.PhoneNumber) == "+971509876543" &&
			awssdk.ToString(attr.StringValue) == "Transactional"
	})).Return(&sns.PublishOutput{MessageId: awssdk.String("sns-1")}, nil)

	id, err := NewSMSSender(api).SendSMS(context.Background(), "+971509876543", "Received")
	require.NoError(t, err)
	assert.Equal(t, "sns-1", id)
	api.AssertExpectations(t)
}
