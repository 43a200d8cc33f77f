// internal/common/aws/ses.go
package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"bankruptcy-workers/internal/common/errors"
)

// SESAPI is the part of the SES client the mailer uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func NewSESClient(ctx context.Context, region string) (*ses.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return ses.NewFromConfig(cfg), nil
}

// ReviewMailer emails review alerts to the case reviewers.
type ReviewMailer struct {
	client     SESAPI
	from       string
	recipients []string
}

func NewReviewMailer(client SESAPI, from string, recipients []string) *ReviewMailer {
	return &ReviewMailer{client: client, from: from, recipients: recipients}
}

func (m *ReviewMailer) Notify(ctx context.Context, alert ReviewAlert) (string, error) {
	if len(m.recipients) == 0 {
		return "", nil
	}

	out, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(m.from),
		Destination: &types.Destination{ToAddresses: m.recipients},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(fmt.Sprintf("Income review needed: case %s", alert.CaseID))},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(alertText(alert))},
			},
		},
	})
	if err != nil {
		return "", errors.NewNotificationSendFailedError("review_email", err)
	}
	return aws.ToString(out.MessageId), nil
}

func alertText(alert ReviewAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case %s has income sources that need review.\n\n", alert.CaseID)
	fmt.Fprintf(&b, "Sources needing review: %d (conflicts: %d)\n", len(alert.SourcesNeedingReview), alert.ConflictCount)
	for _, id := range alert.SourcesNeedingReview {
		fmt.Fprintf(&b, "  - %s\n", id)
	}
	if alert.SkippedExtractions > 0 {
		fmt.Fprintf(&b, "Skipped extractions: %d\n", alert.SkippedExtractions)
	}
	if alert.UnavailableDocuments > 0 {
		fmt.Fprintf(&b, "Documents that could not be fetched: %d\n", alert.UnavailableDocuments)
	}
	return b.String()
}
