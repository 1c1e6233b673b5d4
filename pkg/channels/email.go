package channels

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"regexp"

	"github.com/mrz1836/postmark"

	"github.com/poolfi/notifier/pkg/dispatch"
	"github.com/poolfi/notifier/pkg/notification"
	"github.com/poolfi/notifier/pkg/preference"
)

// EmailConfig holds Postmark and sender identity settings. Tokens are
// optional so development environments can run on the dev sender instead.
type EmailConfig struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// emailBody is the default transactional layout. Kept deliberately plain;
// branded templates live with the host application.
var emailBody = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>{{.Title}}</h2>
  <p>{{.Message}}</p>
  {{if .PoolID}}<p style="color: #666; font-size: 13px;">Pool: {{.PoolID}}</p>{{end}}
</body>
</html>`))

// EmailSender delivers notifications over Postmark's transactional API.
// The recipient address is resolved from the user's saved preferences at
// send time, so an address change takes effect on the next attempt.
type EmailSender struct {
	client *postmark.Client
	config EmailConfig
	prefs  preference.Storage
}

// NewEmailSender creates a Postmark-backed email sender.
func NewEmailSender(cfg EmailConfig, prefs preference.Storage) (*EmailSender, error) {
	if prefs == nil {
		return nil, ErrStorageNil
	}
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SupportEmail) {
		return nil, fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}

	return &EmailSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
		prefs:  prefs,
	}, nil
}

func (s *EmailSender) Channel() notification.Channel {
	return notification.ChannelEmail
}

// Send delivers one notification as a transactional email and returns
// Postmark's message ID for delivery confirmation matching.
func (s *EmailSender) Send(ctx context.Context, notif notification.Notification) (string, error) {
	addr, err := s.recipient(ctx, notif.UserAddress)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	if err := emailBody.Execute(&body, notif); err != nil {
		return "", errors.Join(dispatch.ErrChannelRejected, err)
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.config.SenderEmail,
		ReplyTo:    s.config.SupportEmail,
		To:         addr,
		Subject:    notif.Title,
		Tag:        string(notif.Type),
		HTMLBody:   body.String(),
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return "", errors.Join(dispatch.ErrChannelUnavailable, err)
	}
	if resp.ErrorCode > 0 {
		// Postmark error codes in the 3xx range are recipient problems and
		// will not succeed on retry.
		wrap := dispatch.ErrChannelUnavailable
		if resp.ErrorCode >= 300 && resp.ErrorCode < 400 {
			wrap = dispatch.ErrChannelRejected
		}
		return "", errors.Join(wrap, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}

	return resp.MessageID, nil
}

// recipient looks up the user's email address. A missing or invalid address
// is a permanent failure for this delivery.
func (s *EmailSender) recipient(ctx context.Context, userAddress string) (string, error) {
	prefs, err := s.prefs.Get(ctx, userAddress)
	if err != nil {
		if errors.Is(err, preference.ErrNotFound) {
			return "", errors.Join(dispatch.ErrChannelRejected, ErrMissingRecipient)
		}
		return "", errors.Join(dispatch.ErrChannelUnavailable, err)
	}
	addr := prefs.Email.Address
	if addr == "" || !emailRegex.MatchString(addr) {
		return "", errors.Join(dispatch.ErrChannelRejected, ErrMissingRecipient)
	}
	return addr, nil
}
