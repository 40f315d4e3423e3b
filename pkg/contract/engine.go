package contract

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/meta-closure/zerot/pkg/authctx"
)

const instrumentationName = "github.com/meta-closure/zerot/pkg/contract"

// Method is the shape of a method that can carry a contract. A nil ac asks
// the engine to resolve the caller from its Resolver.
type Method[I, O any] func(ctx context.Context, input I, ac *authctx.AuthContext) (O, error)

// Policy is the non-generic part of a contract: layer tag and retry rules.
type Policy struct {
	// Layer is recorded on every violation. Empty means LayerUnknown.
	Layer Layer
	// RetryAttempts is how many times a failed attempt may be retried.
	// 0 means exactly one attempt; negative values are treated as 0.
	RetryAttempts int
	// RetryDelay is the fixed wait between attempts. Non-positive means
	// DefaultRetryDelay. Ignored when Backoff is set.
	RetryDelay time.Duration
	// RetryOn lists categories that are retried even when the failure is
	// not marked recoverable.
	RetryOn []Category
	// Backoff overrides the fixed delay.
	Backoff Backoff
}

func (p Policy) normalized() Policy {
	if p.Layer == "" {
		p.Layer = LayerUnknown
	}
	if p.RetryAttempts < 0 {
		p.RetryAttempts = 0
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = DefaultRetryDelay
	}
	if p.Backoff == nil {
		p.Backoff = FixedBackoff(p.RetryDelay)
	}
	p.RetryOn = slices.Clone(p.RetryOn)
	return p
}

// retryable is decided by the original cause's classification, never by the
// violation's own code.
func (p Policy) retryable(v *ViolationError) bool {
	return v.IsRecoverable() || slices.Contains(p.RetryOn, v.Category())
}

// Options declares a contract for a Method.
type Options[I, O any] struct {
	// Name identifies the contract in violations, logs and traces, typically
	// "Type.Method". Defaults to the wrapped function's name.
	Name       string
	Requires   []Requirement[I]
	Ensures    []Ensures[I, O]
	Invariants []Invariant[I, O]
	Policy
}

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Engine evaluates contracts. It holds no per-call state and is safe for
// concurrent use once built.
type Engine struct {
	resolver authctx.Resolver
	logger   *slog.Logger
	sleep    SleepFunc
	tracer   trace.Tracer
	meter    metric.Meter
	metrics  engineMetrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithResolver sets how the caller's AuthContext is found when a wrapped
// method is called with a nil one. Default: authctx.ContextResolver().
func WithResolver(r authctx.Resolver) EngineOption {
	return func(e *Engine) { e.resolver = r }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithSleep replaces the wait between attempts.
func WithSleep(s SleepFunc) EngineOption {
	return func(e *Engine) { e.sleep = s }
}

// WithTracer sets the tracer. Default: the global otel tracer provider.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// WithMeter sets the meter. Default: the global otel meter provider.
func WithMeter(m metric.Meter) EngineOption {
	return func(e *Engine) { e.meter = m }
}

// NewEngine builds an Engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		resolver: authctx.ContextResolver(),
		sleep:    sleepContext,
	}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "contract")
	if e.sleep == nil {
		e.sleep = sleepContext
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(instrumentationName)
	}
	if e.meter == nil {
		e.meter = otel.Meter(instrumentationName)
	}
	e.metrics = newEngineMetrics(e.meter, e.logger)
	return e
}

var defaultEngine = sync.OnceValue(func() *Engine { return NewEngine() })

// Wrap returns method guarded by the contract in opts. A nil engine uses a
// shared default engine.
func Wrap[I, O any](engine *Engine, opts Options[I, O], method Method[I, O]) Method[I, O] {
	if engine == nil {
		engine = defaultEngine()
	}
	name := opts.Name
	if name == "" {
		name = funcName(method)
	}

	c := &call[I, O]{
		engine:     engine,
		name:       name,
		policy:     opts.Policy.normalized(),
		requires:   slices.Clone(opts.Requires),
		ensures:    slices.Clone(opts.Ensures),
		invariants: slices.Clone(opts.Invariants),
		method:     method,
	}
	return c.run
}

// WrapDefault is Wrap with the shared default engine.
func WrapDefault[I, O any](opts Options[I, O], method Method[I, O]) Method[I, O] {
	return Wrap(nil, opts, method)
}

// call is one wrapped method; it is immutable after Wrap.
type call[I, O any] struct {
	engine     *Engine
	name       string
	policy     Policy
	requires   []Requirement[I]
	ensures    []Ensures[I, O]
	invariants []Invariant[I, O]
	method     Method[I, O]
}

func (c *call[I, O]) run(ctx context.Context, input I, ac *authctx.AuthContext) (O, error) {
	var zero O
	e := c.engine

	ctx, span := e.tracer.Start(ctx, "contract "+c.name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("contract.name", c.name),
			attribute.String("contract.layer", string(c.policy.Layer)),
		),
	)
	defer span.End()

	attrs := metric.WithAttributes(
		attribute.String("contract.name", c.name),
		attribute.String("contract.layer", string(c.policy.Layer)),
	)
	e.metrics.calls.Add(ctx, 1, attrs)

	if ac == nil {
		resolved, err := authctx.Resolve(ctx, e.resolver)
		if err != nil {
			e.logger.DebugContext(ctx, "auth context resolution failed, continuing with empty context",
				"contract", c.name, "error", err)
		}
		ac = resolved
	}

	maxAttempts := c.policy.RetryAttempts + 1
	for attempts := 0; attempts < maxAttempts; {
		out, err := c.attempt(ctx, input, ac)
		if err == nil {
			span.SetStatus(codes.Ok, "")
			return out, nil
		}

		v := c.violation(err)
		attempts++
		span.SetAttributes(attribute.Int("contract.attempts", attempts))

		if c.policy.retryable(v) && attempts < maxAttempts {
			delay := c.policy.Backoff.Delay(attempts)
			e.logger.WarnContext(ctx, "contract attempt failed, retrying",
				"contract", c.name,
				"layer", c.policy.Layer,
				"attempt", attempts,
				"max_attempts", maxAttempts,
				"code", v.Code(),
				"category", v.Category(),
				"delay", delay,
			)
			span.AddEvent("retry", trace.WithAttributes(
				attribute.Int("attempt", attempts),
				attribute.String("code", v.Code()),
			))
			e.metrics.retries.Add(ctx, 1, attrs)

			if err := e.sleep(ctx, delay); err != nil {
				return zero, c.fail(ctx, span, v)
			}
			// Restart from the original input; validator output is not carried over.
			continue
		}
		return zero, c.fail(ctx, span, v)
	}

	exhausted := NewError(fmt.Sprintf("maximum retry attempts exceeded for %s", c.name),
		WithCode(CodeMaxRetriesExceeded),
		WithCategory(CategorySystem),
		WithRecoverable(false),
	)
	span.RecordError(exhausted)
	span.SetStatus(codes.Error, exhausted.Code())
	return zero, exhausted
}

func (c *call[I, O]) fail(ctx context.Context, span trace.Span, v *ViolationError) *ViolationError {
	span.RecordError(v)
	span.SetStatus(codes.Error, v.Code())
	c.engine.metrics.violations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("contract.name", c.name),
		attribute.String("contract.layer", string(c.policy.Layer)),
		attribute.String("error.code", v.Code()),
		attribute.String("error.category", string(v.Category())),
	))
	return v
}

// attempt runs one pass of requires, method, ensures and invariants.
// Every error it returns is a *ViolationError.
func (c *call[I, O]) attempt(ctx context.Context, input I, ac *authctx.AuthContext) (O, error) {
	var zero O
	current := input

	for i, r := range c.requires {
		if IsValidator(r) {
			next, err := guard(func() (I, error) { return r.validator(ctx, current) })
			if err != nil {
				return zero, c.violation(err)
			}
			current = next
			continue
		}
		if err := c.check(phaseRequires, i, func() (bool, error) {
			return r.condition(ctx, current, ac)
		}); err != nil {
			return zero, err
		}
	}

	out, err := guard(func() (O, error) { return c.method(ctx, current, ac) })
	if err != nil {
		return zero, c.violation(err)
	}

	for i, ens := range c.ensures {
		if err := c.check(phaseEnsures, i, func() (bool, error) {
			return ens(ctx, out, current, ac)
		}); err != nil {
			return zero, err
		}
	}

	for i, inv := range c.invariants {
		if err := c.check(phaseInvariants, i, func() (bool, error) {
			return inv(ctx, current, out)
		}); err != nil {
			return zero, err
		}
	}

	return out, nil
}

func (c *call[I, O]) check(p phase, index int, fn func() (bool, error)) error {
	ok, err := guard(fn)
	if err != nil {
		return c.violation(err)
	}
	if !ok {
		return NewViolation(c.name, c.policy.Layer, p.failure(c.name, index))
	}
	return nil
}

// violation turns err into the single violation for this attempt. A violation
// already present in err's chain is returned as-is, never wrapped again.
func (c *call[I, O]) violation(err error) *ViolationError {
	if v, ok := AsViolation(err); ok {
		return v
	}
	return NewViolation(c.name, c.policy.Layer, Classify(err))
}

type phase struct {
	name     string
	code     string
	category Category
	label    string
}

var (
	phaseRequires   = phase{"requires", CodePreconditionFailed, CategoryValidation, "precondition"}
	phaseEnsures    = phase{"ensures", CodePostconditionFailed, CategoryValidation, "postcondition"}
	phaseInvariants = phase{"invariants", CodeInvariantViolation, CategoryBusinessLogic, "invariant"}
)

// failure is the error synthesized when a check returns false.
func (p phase) failure(contractName string, index int) *Error {
	return NewError(fmt.Sprintf("%s failed for %s", p.label, contractName),
		WithCode(p.code),
		WithCategory(p.category),
		WithDetails(map[string]any{"phase": p.name, "index": index}),
	)
}

// panicError carries a recovered panic value.
type panicError struct {
	value any
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// guard runs fn and converts a panic into an error.
func guard[T any](fn func() (T, error)) (res T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return fn()
}

// funcName derives "pkg.Type.Method" from a function value.
func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "anonymous"
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "anonymous"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	return strings.NewReplacer("(*", "", ")", "").Replace(name)
}
