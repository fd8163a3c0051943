package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/agentx-dm-platform/internal/config"
	"github.com/wolfman30/agentx-dm-platform/internal/notify"
	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

// BuildEmailSender picks SendGrid or SES from EMAIL_PROVIDER, falling back
// to SendGrid when an API key is set and to the logging stub otherwise.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}

	provider := cfg.EmailProvider
	if provider == "" && strings.TrimSpace(cfg.SendGridAPIKey) != "" {
		provider = "sendgrid"
	}

	switch provider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			logger.Info("escalation email via sendgrid")
			return sender
		}
		logger.Warn("sendgrid selected without API key; using stub sender")
	case "ses":
		if strings.TrimSpace(cfg.SESFromEmail) != "" {
			logger.Info("escalation email via ses")
			return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
		logger.Warn("ses selected without SES_FROM_EMAIL; using stub sender")
	}
	return notify.NewStubEmailSender(logger)
}
