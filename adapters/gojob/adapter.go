package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crm-items/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

const JobIDCollect = "crmitems.collect"

const (
	ParamOrgID  = "org_id"
	ParamUserID = "user_id"
)

// CollectParams identifies the authorization whose credential a queued
// collection consumes.
type CollectParams struct {
	OrgID  string
	UserID string
}

func (p CollectParams) Validate() error {
	if strings.TrimSpace(p.OrgID) == "" {
		return fmt.Errorf("gojob: %s parameter is required", ParamOrgID)
	}
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("gojob: %s parameter is required", ParamUserID)
	}
	return nil
}

// NewCollectMessage builds the go-job message for a collection run. The
// idempotency key is the authorization pair, so a duplicate enqueue for the
// same credential can be dropped by the queue.
func NewCollectMessage(params CollectParams) (*job.ExecutionMessage, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	orgID := strings.TrimSpace(params.OrgID)
	userID := strings.TrimSpace(params.UserID)
	return &job.ExecutionMessage{
		JobID:      JobIDCollect,
		ScriptPath: JobIDCollect,
		Parameters: map[string]any{
			ParamOrgID:  orgID,
			ParamUserID: userID,
		},
		IdempotencyKey: JobIDCollect + ":" + orgID + ":" + userID,
	}, nil
}

// ParseCollectMessage reads the collection parameters from a dequeued message.
func ParseCollectMessage(msg *job.ExecutionMessage) (CollectParams, error) {
	if msg == nil {
		return CollectParams{}, fmt.Errorf("gojob: execution message is required")
	}
	if id := strings.TrimSpace(msg.JobID); id != JobIDCollect {
		return CollectParams{}, fmt.Errorf("gojob: unexpected job id %q", id)
	}
	params := CollectParams{
		OrgID:  stringParam(msg.Parameters, ParamOrgID),
		UserID: stringParam(msg.Parameters, ParamUserID),
	}
	if err := params.Validate(); err != nil {
		return CollectParams{}, err
	}
	return params, nil
}

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	RetryDelay      time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation. A
// retry past MaxAttempts becomes terminal: dead-lettered when DeadLetterOnMax
// is set, failed otherwise.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if out.Disposition == queue.NackDispositionRetry && p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Disposition = queue.NackDispositionFailed
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		}
	}
	if out.Disposition != queue.NackDispositionRetry {
		out.Delay = 0
		return out
	}
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	return out
}

type CollectService interface {
	ConsumeCredentials(ctx context.Context, userID string, orgID string) (core.Credential, error)
	CollectItems(ctx context.Context, cred core.Credential) (core.CollectionResult, error)
}

// CollectWorker runs queued collections: it consumes the stored credential
// for the message's pair and walks the worklist with it.
type CollectWorker struct {
	service  CollectService
	enqueuer queue.Enqueuer
	dequeuer queue.Dequeuer
	policy   RetryPolicy
	logger   glog.Logger
}

type WorkerOption func(*CollectWorker)

func WithEnqueuer(enqueuer queue.Enqueuer) WorkerOption {
	return func(w *CollectWorker) {
		w.enqueuer = enqueuer
	}
}

func WithDequeuer(dequeuer queue.Dequeuer) WorkerOption {
	return func(w *CollectWorker) {
		w.dequeuer = dequeuer
	}
}

func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *CollectWorker) {
		w.policy = policy
	}
}

func WithLogger(logger glog.Logger) WorkerOption {
	return func(w *CollectWorker) {
		w.logger = logger
	}
}

func NewCollectWorker(service CollectService, opts ...WorkerOption) *CollectWorker {
	w := &CollectWorker{
		service: service,
		policy:  RetryPolicy{MaxAttempts: 3, MaxDelay: time.Minute, RetryDelay: 5 * time.Second, DeadLetterOnMax: true},
		logger:  glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.logger = glog.Ensure(w.logger)
	return w
}

func (w *CollectWorker) Enqueue(ctx context.Context, params CollectParams) error {
	if w == nil || w.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := NewCollectMessage(params)
	if err != nil {
		return err
	}
	_, err = w.enqueuer.Enqueue(ctx, msg)
	return err
}

// ProcessNext dequeues one message and runs it with attempt as its delivery
// count. The delivery is acked on success and nacked otherwise.
func (w *CollectWorker) ProcessNext(ctx context.Context, attempt int) (core.CollectionResult, error) {
	if w == nil || w.dequeuer == nil {
		return core.CollectionResult{}, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return core.CollectionResult{}, err
	}
	return w.Handle(ctx, delivery, attempt)
}

func (w *CollectWorker) Handle(ctx context.Context, delivery queue.Delivery, attempt int) (core.CollectionResult, error) {
	if w == nil || w.service == nil {
		return core.CollectionResult{}, fmt.Errorf("gojob: collect service is not configured")
	}
	if delivery == nil {
		return core.CollectionResult{}, fmt.Errorf("gojob: delivery is required")
	}

	params, err := ParseCollectMessage(delivery.Message())
	if err != nil {
		return core.CollectionResult{}, w.nack(ctx, delivery, attempt, err, true)
	}

	cred, err := w.service.ConsumeCredentials(ctx, params.UserID, params.OrgID)
	if err != nil {
		// A missing credential will not appear on retry; the user must re-authorize.
		permanent := errors.Is(err, core.ErrNoCredential)
		return core.CollectionResult{}, w.nack(ctx, delivery, attempt, err, permanent)
	}

	result, err := w.service.CollectItems(ctx, cred)
	if err != nil {
		// The credential is already consumed, so a retry could only fail.
		return core.CollectionResult{}, w.nack(ctx, delivery, attempt, err, true)
	}
	if ackErr := delivery.Ack(ctx); ackErr != nil {
		return result, ackErr
	}
	w.logger.Info("collection job completed",
		"job_id", JobIDCollect,
		"org_id", params.OrgID,
		"user_id", params.UserID,
		"run_id", result.RunID,
		"item_count", len(result.Items),
	)
	return result, nil
}

func (w *CollectWorker) nack(ctx context.Context, delivery queue.Delivery, attempt int, cause error, permanent bool) error {
	disposition := queue.NackDispositionRetry
	if permanent {
		disposition = queue.NackDispositionDeadLetter
	}
	opts := w.policy.NormalizeAttempt(queue.NackOptions{
		Disposition: disposition,
		Delay:       w.policy.RetryDelay,
		Reason:      cause.Error(),
	}, attempt)
	w.logger.Warn("collection job failed",
		"job_id", JobIDCollect,
		"attempt", attempt,
		"disposition", string(opts.Disposition),
		"error", cause.Error(),
	)
	if err := queue.ValidateNackOptions(opts); err != nil {
		return errors.Join(cause, err)
	}
	if err := delivery.Nack(ctx, opts); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// LoggingHook reports go-job worker events for collection jobs.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.log("info", "job started", event)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.log("info", "job succeeded", event)
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	h.log("error", "job failed", event)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.log("warn", "job retrying", event)
}

func (h *LoggingHook) log(level string, message string, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	args := eventFields(event)
	switch level {
	case "error":
		h.logger.Error(message, args...)
	case "warn":
		h.logger.Warn(message, args...)
	default:
		h.logger.Info(message, args...)
	}
}

func eventFields(event worker.Event) []any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	fields := []any{"attempt", event.Attempt}
	if message != nil {
		fields = append(fields,
			"job_id", strings.TrimSpace(message.JobID),
			ParamOrgID, stringParam(message.Parameters, ParamOrgID),
			ParamUserID, stringParam(message.Parameters, ParamUserID),
		)
	}
	if event.Delay > 0 {
		fields = append(fields, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Duration > 0 {
		fields = append(fields, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error())
	}
	return fields
}

func stringParam(params map[string]any, key string) string {
	if len(params) == 0 {
		return ""
	}
	switch value := params[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case fmt.Stringer:
		return strings.TrimSpace(value.String())
	default:
		return ""
	}
}

var _ worker.Hook = (*LoggingHook)(nil)
