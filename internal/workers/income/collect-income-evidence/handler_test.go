// internal/workers/income/collect-income-evidence/handler_test.go
package collectincomeevidence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bankruptcy-workers/internal/casefile"
	"bankruptcy-workers/internal/common/config"
	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/common/logger"
)

type MockCollector struct {
	mock.Mock
}

func (m *MockCollector) CollectEvidence(ctx context.Context, caseID string, documentIDs []string) (casefile.CollectResult, error) {
	args := m.Called(ctx, caseID, documentIDs)
	return args.Get(0).(casefile.CollectResult), args.Error(1)
}

func TestHandler_Execute_Success(t *testing.T) {
	collector := new(MockCollector)
	collector.On("CollectEvidence", mock.Anything, "case-1", []string{"doc-w2", "doc-stub"}).
		Return(casefile.CollectResult{CaseID: "case-1", Stored: 3, Duplicates: 1}, nil)

	h := NewHandler(LoadConfig(config.WorkerConfig{}), collector, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{CaseID: "case-1", DocumentIDs: []string{"doc-w2", "doc-stub"}})

	require.NoError(t, err)
	assert.Equal(t, 3, out.EvidenceStored)
	assert.Equal(t, 1, out.EvidenceDuplicates)
	assert.True(t, out.EvidenceComplete)
	assert.NotNil(t, out.RejectedExtractions)
	assert.NotNil(t, out.UnavailableDocuments)
	collector.AssertExpectations(t)
}

func TestHandler_Execute_UnavailableDocuments(t *testing.T) {
	collector := new(MockCollector)
	collector.On("CollectEvidence", mock.Anything, "case-1", []string{"doc-lost"}).
		Return(casefile.CollectResult{
			CaseID:      "case-1",
			Unavailable: []casefile.UnavailableDocument{{DocumentID: "doc-lost", ErrorCode: "DOCINTEL_TIMEOUT"}},
		}, nil)

	h := NewHandler(LoadConfig(config.WorkerConfig{}), collector, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{CaseID: "case-1", DocumentIDs: []string{"doc-lost"}})

	require.NoError(t, err)
	assert.False(t, out.EvidenceComplete)
	require.Len(t, out.UnavailableDocuments, 1)
	assert.Equal(t, "doc-lost", out.UnavailableDocuments[0].DocumentID)
}

func TestHandler_Execute_Errors(t *testing.T) {
	collector := new(MockCollector)
	collector.On("CollectEvidence", mock.Anything, "", mock.Anything).
		Return(casefile.CollectResult{}, errors.NewCaseContextMissingError("caseId is required"))

	h := NewHandler(LoadConfig(config.WorkerConfig{}), collector, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))

	_, err = h.Execute(context.Background(), &Input{})
	assert.True(t, errors.HasCode(err, errors.ErrCodeCaseContextMissing))
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 60*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 5*time.Second, LoadConfig(config.WorkerConfig{Timeout: 5000}).Timeout)
}
