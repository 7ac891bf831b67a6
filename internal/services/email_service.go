package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/Itqan-community/itqan-cms/internal/i18n"
	"github.com/Itqan-community/itqan-cms/internal/models"
	pkglogger "github.com/Itqan-community/itqan-cms/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the subset of the SES client used to send mail.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// WelcomeEmailService sends the post-registration welcome email through AWS SES.
type WelcomeEmailService struct {
	sesClient   SESAPI
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewWelcomeEmailService creates a welcome email sender for region.
func NewWelcomeEmailService(ctx context.Context, region, fromAddress, baseURL string, logger *slog.Logger) (*WelcomeEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWelcomeEmailServiceWithClient(ses.NewFromConfig(cfg), fromAddress, baseURL, logger), nil
}

// NewWelcomeEmailServiceWithClient creates a sender on top of an existing client.
func NewWelcomeEmailServiceWithClient(client SESAPI, fromAddress, baseURL string, logger *slog.Logger) *WelcomeEmailService {
	return &WelcomeEmailService{
		sesClient:   client,
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}
}

type welcomeContent struct {
	dir      string
	subject  string
	greeting string
	body     string
	button   string
	footer   string
}

func welcomeText(lang, name string) welcomeContent {
	tag, _ := i18n.ParseTag(lang)
	if i18n.Code(tag) == "ar" {
		return welcomeContent{
			dir:      "rtl",
			subject:  "مرحباً بك في منصة إتقان",
			greeting: fmt.Sprintf("أهلاً %s،", name),
			body:     "شكراً لإكمال ملفك الشخصي. يمكنك الآن تصفح الأصول وتنزيلها من سوق إتقان.",
			button:   "الذهاب إلى لوحة التحكم",
			footer:   "هذه رسالة آلية، يرجى عدم الرد عليها.",
		}
	}
	return welcomeContent{
		dir:      "ltr",
		subject:  "Welcome to Itqan",
		greeting: fmt.Sprintf("Hello %s,", name),
		body:     "Thank you for completing your profile. You can now browse and download assets from the Itqan marketplace.",
		button:   "Go to your dashboard",
		footer:   "This is an automated message. Please do not reply to this email.",
	}
}

// SendWelcome emails user in lang ("ar" or "en").
func (s *WelcomeEmailService) SendWelcome(ctx context.Context, user *models.User, lang string) error {
	if user == nil || user.Email == "" {
		return fmt.Errorf("%w: no email address", models.ErrBadRequest)
	}

	c := welcomeText(lang, user.DisplayName())
	dashboardLink := s.baseURL + "/dashboard"

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html dir="%s">
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .button { display: inline-block; background-color: #0b6e4f; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <p>%s</p>
        <p>%s</p>
        <p><a href="%s" class="button">%s</a></p>
        <div class="footer"><p>%s</p></div>
    </div>
</body>
</html>
`, c.dir, html.EscapeString(c.greeting), c.body, html.EscapeString(dashboardLink), c.button, c.footer)

	textBody := fmt.Sprintf("%s\n\n%s\n\n%s: %s\n\n%s\n", c.greeting, c.body, c.button, dashboardLink, c.footer)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{user.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(c.subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(textBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send welcome email via SES",
			slog.String("email", pkglogger.SanitizedEmail(user.Email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("welcome email sent",
		slog.String("email", pkglogger.SanitizedEmail(user.Email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
