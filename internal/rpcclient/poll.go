package rpcclient

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const statusComplete = "complete"

type Completion struct {
	AnalysisID string `json:"analysisId"`
	Status     string `json:"status"`
}

// CheckAnalysisCompletion returns the status of one of the caller's analyses.
func (c *Client) CheckAnalysisCompletion(ctx context.Context, analysisID string) (*Completion, error) {
	var out Completion
	err := c.Query(ctx, "analysis.checkAnalysisCompletion", map[string]string{"analysisId": analysisID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForCompletion polls the analysis at a fixed interval until it is
// complete, then calls onComplete (when non-nil) and returns the final status.
// Polling stops when ctx is done or the server answers with a terminal error.
// Other failures are logged and polled through.
func (c *Client) WaitForCompletion(ctx context.Context, analysisID string, onComplete func(*Completion)) (*Completion, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		completion, err := c.CheckAnalysisCompletion(ctx, analysisID)
		switch {
		case err == nil && completion.Status == statusComplete:
			if onComplete != nil {
				onComplete(completion)
			}
			return completion, nil
		case err != nil:
			var rpcErr *Error
			if errors.As(err, &rpcErr) && rpcErr.IsTerminal() {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("analysis status check failed", "analysis_id", analysisID, "error", err)
		default:
			slog.Debug("analysis not complete yet", "analysis_id", analysisID, "status", completion.Status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
