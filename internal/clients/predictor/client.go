package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/studyplan-backend/internal/domain"
	"github.com/yungbote/studyplan-backend/internal/modules/planning"
	"github.com/yungbote/studyplan-backend/internal/observability"
	"github.com/yungbote/studyplan-backend/internal/platform/envutil"
	"github.com/yungbote/studyplan-backend/internal/platform/httpx"
	"github.com/yungbote/studyplan-backend/internal/platform/logger"
)

// ErrUnavailable wraps every failure to obtain predictions.
var ErrUnavailable = planning.ErrPredictorUnavailable

// ErrNotConfigured is returned by NewFromEnv when no predictor endpoint is set.
var ErrNotConfigured = errors.New("predictor base url not configured")

type Options struct {
	BaseURL string
	// Timeout bounds one HTTP exchange; the caller's context bounds the whole call.
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int
	OpenTimeout      time.Duration
	HTTPClient       *http.Client
}

func (o Options) withDefaults() Options {
	o.BaseURL = strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
	if o.Timeout <= 0 {
		o.Timeout = 3 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 200 * time.Millisecond
	}
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 5
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = 30 * time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	return o
}

// Client calls the external mastery-prediction service. It satisfies planning.MasteryPredictor.
type Client struct {
	log     *logger.Logger
	opts    Options
	breaker circuitbreaker.CircuitBreaker[[]float64]
	retrier retry.Retry[[]float64]
}

func New(log *logger.Logger, opts Options) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	opts = opts.withDefaults()
	if opts.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	c := &Client{log: log.With("client", "PredictorClient"), opts: opts}
	c.breaker = circuitbreaker.New[[]float64](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= opts.FailureThreshold
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			c.log.Warn("predictor circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})
	c.retrier = retry.New[[]float64](retry.Config{
		MaxAttempts:   opts.MaxRetries + 1,
		InitialDelay:  opts.RetryDelay,
		MaxDelay:      10 * opts.RetryDelay,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable:   httpx.IsRetryableError,
	})
	return c, nil
}

// NewFromEnv reads PREDICTOR_BASE_URL, PREDICTOR_TIMEOUT_MS and PREDICTOR_MAX_RETRIES.
func NewFromEnv(log *logger.Logger) (*Client, error) {
	return New(log, Options{
		BaseURL:    envutil.String("PREDICTOR_BASE_URL", "", log),
		Timeout:    envutil.Millis("PREDICTOR_TIMEOUT_MS", 3*time.Second, log),
		MaxRetries: envutil.Int("PREDICTOR_MAX_RETRIES", 2, log),
	})
}

type predictRequest struct {
	LearnerID    string        `json:"learner_id"`
	Skills       []skillRef    `json:"skills"`
	Interactions []interaction `json:"interactions"`
}

type skillRef struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

type interaction struct {
	SkillID     string    `json:"skill_id"`
	SkillIndex  int       `json:"skill_index"`
	QuestionID  string    `json:"question_id"`
	Correct     bool      `json:"correct"`
	AttemptedAt time.Time `json:"attempted_at"`
}

type predictResponse struct {
	Predictions []float64 `json:"predictions"`
}

// Predict returns one mastery probability per catalog entry, index-aligned with catalog.
func (c *Client) Predict(ctx context.Context, learnerID uuid.UUID, records []*types.AttemptRecord, catalog []*types.Skill) (preds []float64, err error) {
	ctx, span := observability.StartSpan(ctx, "predictor.Predict",
		attribute.Int("predictor.records", len(records)),
		attribute.Int("predictor.skills", len(catalog)),
	)
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		observability.Current().ObservePredictorCall(status, time.Since(start))
		observability.EndSpan(span, err)
	}()

	body := buildRequest(learnerID, records, catalog)
	preds, err = c.breaker.Execute(ctx, func(ctx context.Context) ([]float64, error) {
		return c.retrier.Do(ctx, func(ctx context.Context) ([]float64, error) {
			return c.doOnce(ctx, body)
		})
	})
	if err != nil {
		c.log.Warn("predictor call failed", "learner_id", learnerID, "records", len(records), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(preds) != len(catalog) {
		c.log.Warn("predictor returned a misaligned vector", "learner_id", learnerID, "want", len(catalog), "got", len(preds))
		return nil, fmt.Errorf("%w: %d predictions for %d skills", ErrUnavailable, len(preds), len(catalog))
	}
	return preds, nil
}

func buildRequest(learnerID uuid.UUID, records []*types.AttemptRecord, catalog []*types.Skill) predictRequest {
	req := predictRequest{
		LearnerID:    learnerID.String(),
		Skills:       make([]skillRef, 0, len(catalog)),
		Interactions: make([]interaction, 0, len(records)),
	}
	index := make(map[uuid.UUID]int, len(catalog))
	for i, s := range catalog {
		index[s.ID] = i
		req.Skills = append(req.Skills, skillRef{ID: s.ID.String(), Position: s.Position})
	}
	for _, r := range records {
		i, ok := index[r.SkillID]
		if !ok {
			continue
		}
		req.Interactions = append(req.Interactions, interaction{
			SkillID:     r.SkillID.String(),
			SkillIndex:  i,
			QuestionID:  r.QuestionID.String(),
			Correct:     r.Correct,
			AttemptedAt: r.AttemptedAt.UTC(),
		})
	}
	return req
}

func (c *Client) doOnce(ctx context.Context, body predictRequest) ([]float64, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/predict", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpx.StatusError{Service: "predictor", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	var out predictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("predictor decode error: %w", err)
	}
	return out.Predictions, nil
}
