// internal/notify/alerts.go
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	commonaws "vendor-ranking-workers/internal/common/aws"
	"vendor-ranking-workers/internal/common/config"
	"vendor-ranking-workers/internal/common/logger"
	"vendor-ranking-workers/internal/models"
)

// Interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Alerter notifies operations when a ranking run needs human attention:
// degraded mode, abstained vendors, or too few eligible vendors. Alert
// failures are logged and swallowed; they never affect the ranking.
type Alerter struct {
	cfg       config.NotificationConfig
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
}

func NewAlerter(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Alerter, error) {
	a := &Alerter{
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "ranking-alerter"}),
	}

	if !cfg.Email.Enabled && !cfg.SNS.Enabled {
		return a, nil
	}

	sesClient, err := commonaws.NewSESClient(ctx, cfg.AWS.Region)
	if err != nil {
		return nil, fmt.Errorf("init SES client: %w", err)
	}
	snsClient, err := commonaws.NewSNSClient(ctx, cfg.AWS.Region)
	if err != nil {
		return nil, fmt.Errorf("init SNS client: %w", err)
	}
	a.sesClient = sesClient
	a.snsClient = snsClient
	return a, nil
}

// NewAlerterWithClients wires explicit clients, used by tests.
func NewAlerterWithClients(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *Alerter {
	return &Alerter{
		cfg:       cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "ranking-alerter"}),
		sesClient: sesClient,
		snsClient: snsClient,
	}
}

// ShouldAlert reports whether a ranking result warrants an alert.
func ShouldAlert(result *models.RankingResult) bool {
	if result == nil {
		return false
	}
	return result.Degraded || result.Warning != "" || countAbstentions(result) > 0
}

// RankingAlert publishes the alert over every enabled channel.
func (a *Alerter) RankingAlert(ctx context.Context, result *models.RankingResult) {
	if !ShouldAlert(result) {
		return
	}

	subject, body := a.buildMessage(result)

	if a.cfg.SNS.Enabled && a.snsClient != nil && a.cfg.SNS.TopicARN != "" {
		_, err := a.snsClient.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(a.cfg.SNS.TopicARN),
			Subject:  aws.String(subject),
			Message:  aws.String(body),
		})
		if err != nil {
			a.logger.Error("SNS alert publish failed", map[string]interface{}{
				"rankingId": result.RankingID,
				"error":     err.Error(),
			})
		}
	}

	if a.cfg.Email.Enabled && a.sesClient != nil && len(a.cfg.Email.ToEmails) > 0 {
		_, err := a.sesClient.SendEmail(ctx, &ses.SendEmailInput{
			Source: aws.String(a.cfg.Email.FromEmail),
			Destination: &sestypes.Destination{
				ToAddresses: a.cfg.Email.ToEmails,
			},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(body)},
				},
			},
		})
		if err != nil {
			a.logger.Error("email alert send failed", map[string]interface{}{
				"rankingId": result.RankingID,
				"error":     err.Error(),
			})
		}
	}
}

func (a *Alerter) buildMessage(result *models.RankingResult) (string, string) {
	mode := "hybrid"
	if result.Degraded {
		mode = "degraded"
	}
	subject := fmt.Sprintf("Vendor ranking needs review: job %s (%s)", result.JobID, mode)

	var b strings.Builder
	fmt.Fprintf(&b, "Ranking %s for job %s completed in %s mode.\n", result.RankingID, result.JobID, mode)
	fmt.Fprintf(&b, "Evaluated %d vendors, %d eligible, %d recommended.\n",
		result.TotalEvaluated, result.EligibleCount, len(result.Recommendations))
	if result.Warning != "" {
		fmt.Fprintf(&b, "Warning: %s\n", result.Warning)
	}
	if n := countAbstentions(result); n > 0 {
		fmt.Fprintf(&b, "Abstained vendors (%d):\n", n)
		for _, excl := range result.Exclusions {
			if strings.Contains(excl.Reason, "abstain") {
				fmt.Fprintf(&b, "  - %s: %s\n", excl.VendorID, excl.Reason)
			}
		}
	}
	for _, rec := range result.Recommendations {
		fmt.Fprintf(&b, "#%d %s score=%.3f confidence=%.3f route=%s\n",
			rec.Rank, rec.VendorID, rec.OverallScore, rec.Confidence, rec.ConfidenceDetail.Level)
	}
	return subject, b.String()
}

func countAbstentions(result *models.RankingResult) int {
	n := 0
	for _, excl := range result.Exclusions {
		if strings.Contains(excl.Reason, "abstain") {
			n++
		}
	}
	return n
}
