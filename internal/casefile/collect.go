package casefile

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/common/metrics"
	"bankruptcy-workers/internal/income"
	"bankruptcy-workers/internal/repository"
)

// UnavailableDocument is a document whose extractions could not be fetched.
type UnavailableDocument struct {
	DocumentID string `json:"documentId"`
	ErrorCode  string `json:"errorCode"`
	Detail     string `json:"detail,omitempty"`
}

type CollectResult struct {
	CaseID      string                `json:"caseId"`
	Stored      int                   `json:"stored"`
	Duplicates  int                   `json:"duplicates"`
	Rejected    []string              `json:"rejected,omitempty"`
	Unavailable []UnavailableDocument `json:"unavailable,omitempty"`
}

// CollectEvidence pulls the extractions of documentIDs in parallel and stores
// them as raw evidence. A document the service cannot deliver is recorded as
// unavailable and does not fail the call; storage failures do.
func (s *Service) CollectEvidence(ctx context.Context, caseID string, documentIDs []string) (CollectResult, error) {
	caseID, err := requireCaseID(caseID)
	if err != nil {
		return CollectResult{}, err
	}
	log := s.log.WithFields(map[string]interface{}{"caseId": caseID})
	defer s.obs.Stage(ctx, "collect_evidence")()

	result := CollectResult{CaseID: caseID}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)

	for _, documentID := range dedupe(documentIDs) {
		documentID := documentID
		g.Go(func() error {
			payloads, err := s.fetcher.FetchExtractions(gctx, documentID)
			if err != nil {
				code := string(errors.ErrCodeDocIntelUnavailable)
				if stdErr, ok := errors.AsStandardError(err); ok {
					code = string(stdErr.Code)
				}
				metrics.DocumentFetches.WithLabelValues("unavailable").Inc()
				log.Warn("Document extractions unavailable", map[string]interface{}{
					"documentId": documentID,
					"errorCode":  code,
					"error":      err.Error(),
				})
				if markErr := s.store.MarkDocument(gctx, caseID, documentID, repository.DocumentUnavailable, code, err.Error()); markErr != nil {
					return markErr
				}
				mu.Lock()
				result.Unavailable = append(result.Unavailable, UnavailableDocument{DocumentID: documentID, ErrorCode: code, Detail: err.Error()})
				mu.Unlock()
				return nil
			}
			metrics.DocumentFetches.WithLabelValues("ok").Inc()

			stored, duplicates, rejected, err := s.storePayloads(gctx, caseID, documentID, payloads)
			if err != nil {
				return err
			}
			if err := s.store.MarkDocument(gctx, caseID, documentID, repository.DocumentCollected, "", ""); err != nil {
				return err
			}

			mu.Lock()
			result.Stored += stored
			result.Duplicates += duplicates
			result.Rejected = append(result.Rejected, rejected...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return CollectResult{}, err
	}

	sort.Strings(result.Rejected)
	sort.Slice(result.Unavailable, func(i, j int) bool {
		return result.Unavailable[i].DocumentID < result.Unavailable[j].DocumentID
	})

	log.Info("Evidence collected", map[string]interface{}{
		"documents":   len(documentIDs),
		"stored":      result.Stored,
		"duplicates":  result.Duplicates,
		"rejected":    len(result.Rejected),
		"unavailable": len(result.Unavailable),
	})
	return result, nil
}

// storePayloads saves each payload under its extraction id. A payload with no
// readable id is kept under a positional id so that recomputation reports it
// as skipped; one claiming another case is rejected.
func (s *Service) storePayloads(ctx context.Context, caseID, documentID string, payloads []json.RawMessage) (stored, duplicates int, rejected []string, err error) {
	for i, payload := range payloads {
		id := fmt.Sprintf("%s#%d", documentID, i)
		if env, peekErr := income.PeekEnvelope(payload); peekErr == nil {
			if env.CaseID != "" && env.CaseID != caseID {
				s.log.Warn("Extraction belongs to another case", map[string]interface{}{
					"caseId":        caseID,
					"documentId":    documentID,
					"extractionId":  env.ExtractionID,
					"payloadCaseId": env.CaseID,
				})
				rejected = append(rejected, env.ExtractionID)
				continue
			}
			if strings.TrimSpace(env.ExtractionID) != "" {
				id = env.ExtractionID
			}
		}

		inserted, err := s.store.SaveRawExtraction(ctx, repository.StoredExtraction{
			ID:         id,
			CaseID:     caseID,
			DocumentID: documentID,
			Payload:    payload,
		})
		if err != nil {
			return 0, 0, nil, err
		}
		if inserted {
			stored++
		} else {
			duplicates++
		}
	}
	return stored, duplicates, rejected, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
