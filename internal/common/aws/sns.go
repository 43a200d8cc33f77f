// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"bankruptcy-workers/internal/common/errors"
)

// SNSAPI is the part of the SNS client the notifier uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return sns.NewFromConfig(cfg), nil
}

// ReviewAlert tells case reviewers that a recompute left sources unreconciled.
type ReviewAlert struct {
	CaseID               string   `json:"caseId"`
	SourcesNeedingReview []string `json:"sourcesNeedingReview"`
	ConflictCount        int      `json:"conflictCount"`
	SkippedExtractions   int      `json:"skippedExtractions"`
	UnavailableDocuments int      `json:"unavailableDocuments"`
}

type ReviewNotifier struct {
	client   SNSAPI
	topicARN string
}

func NewReviewNotifier(client SNSAPI, topicARN string) *ReviewNotifier {
	return &ReviewNotifier{client: client, topicARN: topicARN}
}

// Notify publishes alert to the review topic and returns the message id.
func (n *ReviewNotifier) Notify(ctx context.Context, alert ReviewAlert) (string, error) {
	body, err := json.Marshal(alert)
	if err != nil {
		return "", errors.NewNotificationSendFailedError("review_alert", err)
	}

	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(fmt.Sprintf("Income review needed: case %s", alert.CaseID)),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"caseId": {DataType: aws.String("String"), StringValue: aws.String(alert.CaseID)},
			"event":  {DataType: aws.String("String"), StringValue: aws.String("income.review_needed")},
		},
	})
	if err != nil {
		return "", errors.NewNotificationSendFailedError("review_alert", err)
	}
	return aws.ToString(out.MessageId), nil
}
