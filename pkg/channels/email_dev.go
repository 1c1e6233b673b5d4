package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/poolfi/notifier/pkg/dispatch"
	"github.com/poolfi/notifier/pkg/notification"
)

// DevEmailSender saves outbound emails as HTML plus JSON metadata files
// instead of calling an email provider. Intended for local development.
type DevEmailSender struct {
	dir string
}

// NewDevEmailSender creates a development email sender writing into dir.
// The directory is created on first send.
func NewDevEmailSender(dir string) *DevEmailSender {
	return &DevEmailSender{dir: dir}
}

func (s *DevEmailSender) Channel() notification.Channel {
	return notification.ChannelEmail
}

type devEmailMetadata struct {
	Timestamp   string `json:"timestamp"`
	UserAddress string `json:"user_address"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	ProviderID  string `json:"provider_id"`
}

func (s *DevEmailSender) Send(ctx context.Context, notif notification.Notification) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", errors.Join(dispatch.ErrChannelUnavailable, err)
	}

	var body bytes.Buffer
	if err := emailBody.Execute(&body, notif); err != nil {
		return "", errors.Join(dispatch.ErrChannelRejected, err)
	}

	now := time.Now()
	providerID := "dev-" + uuid.New().String()
	base := fmt.Sprintf("%s_%s", now.Format("2006_01_02_150405"), sanitizeFilename(notif.Title))

	if err := os.WriteFile(filepath.Join(s.dir, base+".html"), body.Bytes(), 0644); err != nil {
		return "", errors.Join(dispatch.ErrChannelUnavailable, err)
	}

	meta, err := json.MarshalIndent(devEmailMetadata{
		Timestamp:   now.Format(time.RFC3339),
		UserAddress: notif.UserAddress,
		Type:        string(notif.Type),
		Title:       notif.Title,
		ProviderID:  providerID,
	}, "", "  ")
	if err != nil {
		return "", errors.Join(dispatch.ErrChannelUnavailable, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, base+".json"), meta, 0644); err != nil {
		return "", errors.Join(dispatch.ErrChannelUnavailable, err)
	}

	return providerID, nil
}

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = sanitizeRegex.ReplaceAllString(s, "")

	const maxLength = 100
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	if s == "" {
		s = "notification"
	}
	return strings.ToLower(s)
}
