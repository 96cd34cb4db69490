package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"genstudio/internal/credential"
)

// Attempt records one (candidate, credential) try for diagnostics.
type Attempt struct {
	Family       string
	Model        string
	CredentialID int
	Err          string
}

// AggregateError is returned when every (candidate, credential) pair has been
// exhausted. Partial-attempt errors are never surfaced individually; the last
// classified error stands in for the batch.
type AggregateError struct {
	Attempts []Attempt
	LastErr  *ProviderError
}

func (e *AggregateError) Error() string {
	if e.LastErr == nil {
		return fmt.Sprintf("all provider candidates exhausted after %d attempts", len(e.Attempts))
	}
	return fmt.Sprintf("all provider candidates exhausted after %d attempts, last error: %s", len(e.Attempts), e.LastErr.Error())
}

func (e *AggregateError) Unwrap() error {
	if e.LastErr == nil {
		return nil
	}
	return e.LastErr
}

// Outcome is a successful execution plus its attempt log.
type Outcome struct {
	Result   *Result
	Family   string
	Model    string
	Attempts []Attempt
}

// Executor walks a candidate chain against the credential pool until one call
// succeeds or everything is exhausted. It holds no per-request state and is
// safe for concurrent use.
type Executor struct {
	pool           *credential.Pool
	registry       Registry
	attemptTimeout time.Duration
}

// NewExecutor creates a failover executor. attemptTimeout bounds every single
// outbound call; zero means a 2-minute default.
func NewExecutor(pool *credential.Pool, registry Registry, attemptTimeout time.Duration) *Executor {
	if attemptTimeout <= 0 {
		attemptTimeout = 2 * time.Minute
	}
	return &Executor{pool: pool, registry: registry, attemptTimeout: attemptTimeout}
}

// Execute tries each candidate with each of its credentials in configuration
// order and returns on the first success. Candidates whose family has no
// credentials or no registered client are skipped, not fatal.
func (e *Executor) Execute(ctx context.Context, chain []Candidate, req Request) (*Outcome, error) {
	if len(chain) == 0 {
		return nil, &AggregateError{LastErr: &ProviderError{
			Kind:    KindInvalidRequest,
			Message: "empty candidate chain",
		}}
	}

	var attempts []Attempt
	var lastErr *ProviderError

	for _, cand := range chain {
		client := e.registry.Client(cand.Family)
		if client == nil {
			logrus.WithField("family", cand.Family).Warn("no client registered for provider family")
			continue
		}

		creds := e.pool.ForFamily(cand.Family)
		if len(creds) == 0 {
			logrus.WithFields(logrus.Fields{
				"family": cand.Family,
				"model":  cand.Model,
			}).Warn("skipping candidate: credential pool empty")
			continue
		}

		for _, cred := range creds {
			result, err := e.attempt(ctx, client, cand, cred, req)
			if err == nil {
				logrus.WithFields(logrus.Fields{
					"family":   cand.Family,
					"model":    cand.Model,
					"attempts": len(attempts) + 1,
				}).Info("generation attempt succeeded")
				return &Outcome{
					Result:   result,
					Family:   cand.Family,
					Model:    cand.Model,
					Attempts: append(attempts, Attempt{Family: cand.Family, Model: cand.Model, CredentialID: cred.ID}),
				}, nil
			}

			classified := ClassifyErr(cand.Family, err)
			lastErr = classified
			attempts = append(attempts, Attempt{
				Family:       cand.Family,
				Model:        cand.Model,
				CredentialID: cred.ID,
				Err:          classified.Error(),
			})

			logrus.WithError(classified).WithFields(logrus.Fields{
				"family":        cand.Family,
				"model":         cand.Model,
				"credential_id": cred.ID,
				"kind":          classified.Kind,
				"attempt":       len(attempts),
			}).Warn("generation attempt failed")

			if !classified.RetryNextCandidate() {
				return nil, &AggregateError{Attempts: attempts, LastErr: classified}
			}
			if !classified.RetryNextCredential() {
				// Content-policy style failures follow the content, not the
				// key: skip the rest of this candidate's credentials.
				break
			}
		}
	}

	return nil, &AggregateError{Attempts: attempts, LastErr: lastErr}
}

func (e *Executor) attempt(ctx context.Context, client ProviderClient, cand Candidate, cred credential.Credential, req Request) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()

	switch cand.Kind {
	case KindImage:
		return client.GenerateImage(attemptCtx, cred.Secret, cand.Model, req.Prompt, req.Size)
	case KindCompletion, KindVision:
		parts := req.Parts
		if len(parts) == 0 {
			parts = TextParts(req.Prompt)
		}
		return client.GenerateCompletion(attemptCtx, cred.Secret, cand.Model, parts)
	default:
		return nil, &ProviderError{
			Family:  cand.Family,
			Kind:    KindInvalidRequest,
			Message: fmt.Sprintf("unsupported candidate kind: %s", cand.Kind),
		}
	}
}

// DescribeFailure produces a short operator-facing summary of an aggregate
// failure, suitable for the job diagnostic column.
func DescribeFailure(err error) string {
	var agg *AggregateError
	if !errors.As(err, &agg) {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	lines := make([]string, 0, len(agg.Attempts)+1)
	lines = append(lines, agg.Error())
	for i, a := range agg.Attempts {
		lines = append(lines, fmt.Sprintf("attempt %d: %s/%s key#%d: %s", i+1, a.Family, a.Model, a.CredentialID, a.Err))
	}
	return strings.Join(lines, "\n")
}
