package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the slice of the SES client the transport calls.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESTransport sends through Amazon SES.
type SESTransport struct {
	client SESAPI
	from   string
}

func NewSESTransport(client SESAPI, from string) *SESTransport {
	return &SESTransport{client: client, from: from}
}

func (t *SESTransport) Name() string { return TransportSES }

func (t *SESTransport) Send(ctx context.Context, msg *Message) error {
	_, err := t.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(t.from),
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email via ses: %w", err)
	}
	return nil
}
