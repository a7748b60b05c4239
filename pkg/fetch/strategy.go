package fetch

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"crawlops/pkg/models"
	"crawlops/pkg/utils"
)

// Request carries everything a strategy needs to fetch one page: the target
// URL plus the headers and cookies the crawl policy and stored session imply.
type Request struct {
	URL     string
	Header  http.Header
	Cookies []*http.Cookie
}

// Strategy fetches a single page and returns the extracted result.
// Implementations must honor ctx cancellation and return an error rather
// than a partial PageResult when the fetch fails.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, req *Request) (*models.PageResult, error)
}

// Pipeline tries an ordered list of strategies until one succeeds.
// The primary browser strategy comes first; the plain HTTP fallback
// only runs when rendering fails.
type Pipeline struct {
	strategies []Strategy
	log        *logrus.Logger
}

// NewPipeline creates a Pipeline trying the given strategies in order.
func NewPipeline(log *logrus.Logger, strategies ...Strategy) *Pipeline {
	return &Pipeline{strategies: strategies, log: log}
}

// Fetch runs the strategies in order and returns the first successful result
// If every strategy fails, the last error is wrapped in ErrAllStrategiesFailed
// Context cancellation aborts immediately without trying further strategies
func (p *Pipeline) Fetch(ctx context.Context, req *Request) (*models.PageResult, error) {
	pageLog := p.log.WithField("url", req.URL)

	var lastErr error
	for _, strategy := range p.strategies {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result, err := strategy.Fetch(ctx, req)
		if err == nil {
			pageLog.WithField("strategy", strategy.Name()).Debug("Fetch succeeded")
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		pageLog.WithField("strategy", strategy.Name()).Warnf("Strategy failed: %v", err)
		lastErr = err
	}

	if lastErr == nil {
		return nil, utils.WrapErrorf(utils.ErrAllStrategiesFailed, "no fetch strategies configured")
	}
	return nil, utils.WrapErrorf(utils.ErrAllStrategiesFailed, "last error: %v", lastErr)
}
