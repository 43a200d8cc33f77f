package aws

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bankruptcy-workers/internal/common/errors"
)

type MockSES struct {
	mock.Mock
}

func (m *MockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*ses.SendEmailOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestReviewMailer_Notify(t *testing.T) {
	client := new(MockSES)
	client.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		body := aws.ToString(in.Message.Body.Text.Data)
		return aws.ToString(in.Source) == "noreply@example.com" &&
			len(in.Destination.ToAddresses) == 1 &&
			strings.Contains(body, "src-1") &&
			strings.Contains(body, "Skipped extractions: 2")
	})).Return(&ses.SendEmailOutput{MessageId: aws.String("email-1")}, nil)

	mailer := NewReviewMailer(client, "noreply@example.com", []string{"review@example.com"})
	id, err := mailer.Notify(context.Background(), ReviewAlert{
		CaseID:               "case-1",
		SourcesNeedingReview: []string{"src-1"},
		SkippedExtractions:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, "email-1", id)
	client.AssertExpectations(t)
}

func TestReviewMailer_NoRecipients(t *testing.T) {
	client := new(MockSES)
	id, err := NewReviewMailer(client, "noreply@example.com", nil).Notify(context.Background(), ReviewAlert{CaseID: "case-1"})
	require.NoError(t, err)
	assert.Empty(t, id)
	client.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
}

func TestFanout(t *testing.T) {
	okSNS := new(MockSNS)
	okSNS.On("Publish", mock.Anything, mock.Anything).Return(&sns.PublishOutput{MessageId: aws.String("msg-ok")}, nil)
	failing := new(MockSES)
	failing.On("SendEmail", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("rejected"))

	fan := Fanout{
		NewReviewMailer(failing, "noreply@example.com", []string{"review@example.com"}),
		NewReviewNotifier(okSNS, "arn"),
	}
	id, err := fan.Notify(context.Background(), ReviewAlert{CaseID: "case-1"})

	assert.Equal(t, "msg-ok", id)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotificationSendFailed))
}
