package email

import (
	"context"

	apperrors "cakeshop-notifier/internal/common/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the part of the SES client the sender uses.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESSender struct {
	client SESService
	from   string
}

func NewSESSender(client SESService, from string) *SESSender {
	return &SESSender{client: client, from: from}
}

func (s *SESSender) Provider() string { return "ses" }

func (s *SESSender) Send(ctx context.Context, msg Message) error {
	body := &types.Body{Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}

	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
		Source: aws.String(s.from),
	})
	if err != nil {
		return apperrors.NewEmailSendFailedError(s.Provider(), err)
	}
	return nil
}
