package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/agentstore/storefront-auth/pkg/logger"
)

// sesSender is the part of *ses.Client used to send mail
type sesSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESLockoutNotifier emails the account owner when their account is locked
type SESLockoutNotifier struct {
	client      sesSender
	fromAddress string
	supportURL  string
	logger      *slog.Logger
}

// NewSESLockoutNotifier loads the default AWS credential chain for region
func NewSESLockoutNotifier(ctx context.Context, region, fromAddress, supportURL string, logger *slog.Logger) (*SESLockoutNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSESLockoutNotifier(ses.NewFromConfig(cfg), fromAddress, supportURL, logger), nil
}

func newSESLockoutNotifier(client sesSender, fromAddress, supportURL string, logger *slog.Logger) *SESLockoutNotifier {
	return &SESLockoutNotifier{
		client:      client,
		fromAddress: fromAddress,
		supportURL:  supportURL,
		logger:      logger,
	}
}

// NotifyLockout sends the lockout notice
func (n *SESLockoutNotifier) NotifyLockout(ctx context.Context, email string, lockout time.Duration) error {
	minutes := int(lockout / time.Minute)

	textBody := fmt.Sprintf(`Your AI Agent Store account was temporarily locked

We noticed several failed sign-in attempts on your account. To protect it, sign-in is paused for %d minutes.

If this was you, wait and try again, or reset your password.
If it wasn't you, reset your password as soon as the lock expires.

Need help? %s

This is an automated message. Please do not reply to this email.
`, minutes, n.supportURL)

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your account was temporarily locked"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send lockout email: %w", err)
	}

	n.logger.Info("lockout email sent",
		pkglogger.EmailAttr(email),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// LogLockoutNotifier only logs lockouts. Used when e-mail is disabled.
type LogLockoutNotifier struct {
	logger *slog.Logger
}

func NewLogLockoutNotifier(logger *slog.Logger) *LogLockoutNotifier {
	return &LogLockoutNotifier{logger: logger}
}

func (n *LogLockoutNotifier) NotifyLockout(_ context.Context, email string, lockout time.Duration) error {
	n.logger.Info("lockout notice suppressed, email disabled",
		pkglogger.EmailAttr(email),
		slog.Duration("lockout", lockout))
	return nil
}
