package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/guidely/guidely-backend/pkg/config"
	"github.com/guidely/guidely-backend/pkg/logger"
)

// InviteMessage carries everything an invitation email template needs.
type InviteMessage struct {
	To          string
	CompanyName string
	Role        string
	AcceptURL   string
}

// Sender delivers invitation emails. Production wiring can swap this for a
// real provider; the log sender keeps dev and test environments self-contained.
type Sender interface {
	SendInvite(ctx context.Context, msg InviteMessage) error
}

// BuildAcceptURL appends the invitation token to the configured accept page.
func BuildAcceptURL(cfg config.InvitesConfig, token string) (string, error) {
	base, err := url.Parse(cfg.AcceptURL)
	if err != nil {
		return "", fmt.Errorf("parsing invite accept url: %w", err)
	}
	q := base.Query()
	q.Set("token", token)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// NewSender returns the sender implementation selected by config.
func NewSender(cfg config.InvitesConfig, logg *logger.Logger) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.SenderKind)) {
	case "", "log":
		return &logSender{from: cfg.FromEmail, logg: logg}, nil
	default:
		return nil, fmt.Errorf("unsupported invite sender %q", cfg.SenderKind)
	}
}

type logSender struct {
	from string
	logg *logger.Logger
}

func (s *logSender) SendInvite(ctx context.Context, msg InviteMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("recipient is required")
	}
	if s.logg != nil {
		fields := map[string]any{
			"from":    s.from,
			"to":      msg.To,
			"company": msg.CompanyName,
			"role":    msg.Role,
			"url":     msg.AcceptURL,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "invitation email dispatched")
	}
	return nil
}
