package channel

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/amelnyk/slotly-notify/internal/db"
)

// EmailSender delivers notifications as HTML email via AWS SES.
type EmailSender struct {
	client *ses.Client
	from   string
	logger *zap.Logger
}

type EmailConfig struct {
	Region    string
	FromEmail string
}

var emailBodyTmpl = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2933; margin: 0; padding: 24px;">
  <div style="max-width: 560px; margin: 0 auto; border: 1px solid #e4e7eb; border-radius: 8px; padding: 24px;">
    <h2 style="margin-top: 0;">{{.Title}}</h2>
    <p>{{.Greeting}}</p>
    <p>{{.Body}}</p>
    {{if .Details}}
    <table style="border-collapse: collapse; width: 100%; margin-top: 16px;">
      {{range .Details}}
      <tr>
        <td style="padding: 6px 12px 6px 0; color: #52606d;">{{.Label}}</td>
        <td style="padding: 6px 0;">{{.Value}}</td>
      </tr>
      {{end}}
    </table>
    {{end}}
    <p style="color: #9aa5b1; font-size: 12px; margin-top: 24px;">Slotly — service bookings made simple</p>
  </div>
</body>
</html>`))

type emailDetail struct {
	Label string
	Value string
}

type emailData struct {
	Title    string
	Greeting string
	Body     string
	Details  []emailDetail
}

// NewEmailSender creates an SES-backed email sender.
func NewEmailSender(ctx context.Context, cfg EmailConfig, logger *zap.Logger) (*EmailSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config: %w", err)
	}

	return &EmailSender{
		client: ses.NewFromConfig(awsCfg),
		from:   cfg.FromEmail,
		logger: logger,
	}, nil
}

func (s *EmailSender) Channel() string {
	return db.ChannelEmail
}

// Send renders the HTML document and hands it to SES.
func (s *EmailSender) Send(ctx context.Context, d *Delivery) error {
	if d.User.Email == "" {
		return fmt.Errorf("delivery missing recipient email")
	}

	html, err := renderEmailHTML(d)
	if err != nil {
		return fmt.Errorf("render email body: %w", err)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{d.User.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(d.EmailSubject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(html),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(d.EmailBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send failed: %w", err)
	}

	s.logger.Info("email sent via SES",
		zap.String("notification_id", d.NotificationID.String()),
		zap.String("to", d.User.Email),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return nil
}

// renderEmailHTML builds the HTML document embedding title, greeting, body
// and detail rows derived from the payload data. Detail order is sorted by
// label so repeated sends of the same payload render identically.
func renderEmailHTML(d *Delivery) (string, error) {
	details := make([]emailDetail, 0, len(d.Details))
	for label, value := range d.Details {
		details = append(details, emailDetail{Label: label, Value: value})
	}
	sort.Slice(details, func(i, j int) bool { return details[i].Label < details[j].Label })

	greeting := "Hello"
	if d.User.FirstName != "" {
		greeting = fmt.Sprintf("Hello %s", d.User.FirstName)
	}

	var buf bytes.Buffer
	err := emailBodyTmpl.Execute(&buf, emailData{
		Title:    d.Title,
		Greeting: greeting + ",",
		Body:     d.EmailBody,
		Details:  details,
	})
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}
