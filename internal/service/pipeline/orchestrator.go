// Package pipeline runs one comment through resolve, filter, context, generate and archive.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zhouzirui/aituber/backend/internal/analysis/emotion"
	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/service/ai"
	"github.com/zhouzirui/aituber/backend/internal/service/archive"
	"github.com/zhouzirui/aituber/backend/internal/service/filter"
	"github.com/zhouzirui/aituber/backend/internal/service/reply"
	"github.com/zhouzirui/aituber/backend/internal/service/viewer"
	"github.com/zhouzirui/aituber/backend/internal/store"
	"github.com/zhouzirui/aituber/backend/internal/telemetry"
)

// State is a step of the per-comment state machine.
type State string

const (
	StateResolvingViewer State = "resolving_viewer"
	StateFiltering       State = "filtering"
	StateRejected        State = "rejected"
	StateBuildingContext State = "building_context"
	StateGenerating      State = "generating"
	StateArchiving       State = "archiving"
	StateDone            State = "done"
)

// Outcomes reported to metrics.
const (
	OutcomeReplied  = "replied"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// ErrUsernameRequired is returned for comments without a username.
var ErrUsernameRequired = errors.New("username is required")

// StageError reports which stage aborted a turn.
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Processor runs comments through the pipeline. *Orchestrator implements it.
type Processor interface {
	Process(ctx context.Context, in live.CommentInput) (live.ReplyOutput, error)
}

// StageObserver is called after every stage, and once with the terminal state.
type StageObserver func(state State, elapsed time.Duration, err error)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStageObserver registers fn to be told about every stage transition.
func WithStageObserver(fn StageObserver) Option {
	return func(o *Orchestrator) {
		o.observe = fn
	}
}

// Orchestrator sequences the stages for each comment. It keeps no per-comment state, so
// Process may be called concurrently.
type Orchestrator struct {
	resolver  *viewer.Resolver
	filter    *filter.Filter
	builder   *reply.ContextBuilder
	generator *reply.Generator
	archiver  *archive.Archiver
	observe   StageObserver
}

// New wires an Orchestrator from its stages.
func New(resolver *viewer.Resolver, f *filter.Filter, builder *reply.ContextBuilder, generator *reply.Generator, archiver *archive.Archiver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:  resolver,
		filter:    f,
		builder:   builder,
		generator: generator,
		archiver:  archiver,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Dependencies is everything NewFromDependencies needs.
type Dependencies struct {
	Store        store.Store
	Reading      ai.Generator
	Filter       ai.Generator
	Reply        ai.Generator
	PersonaName  string
	DefaultTitle string
}

// NewFromDependencies builds every stage on one store and three generators.
func NewFromDependencies(deps Dependencies, opts ...Option) *Orchestrator {
	return New(
		viewer.NewResolver(deps.Store, deps.Reading, deps.DefaultTitle),
		filter.New(deps.Filter),
		reply.NewContextBuilder(deps.Store, deps.PersonaName),
		reply.NewGenerator(deps.Reply),
		archive.New(deps.Store),
		opts...,
	)
}

// Process runs one comment to completion. Rejected comments return shouldRespond=false and are
// not archived. Fatal stage errors come back as *StageError.
func (o *Orchestrator) Process(ctx context.Context, in live.CommentInput) (out live.ReplyOutput, err error) {
	if strings.TrimSpace(in.Username) == "" {
		return live.ReplyOutput{}, ErrUsernameRequired
	}

	ctx, span := telemetry.StartSpan(ctx, "pipeline.process",
		attribute.String("session.id", in.SessionID),
		attribute.String("viewer.username", in.Username),
	)
	start := time.Now()
	defer func() {
		telemetry.EndSpan(span, err)
		outcome := OutcomeReplied
		switch {
		case err != nil:
			outcome = OutcomeFailed
		case !out.ShouldRespond:
			outcome = OutcomeRejected
		}
		telemetry.CountComment(outcome)

		event := log.Info()
		if err != nil {
			event = log.Error().Err(err)
		}
		event.Str("component", "pipeline").
			Str("session", out.SessionID).
			Str("username", in.Username).
			Str("outcome", outcome).
			Dur("elapsed", time.Since(start)).
			Msg("comment processed")
	}()

	var res viewer.Resolution
	if err = o.stage(ctx, StateResolvingViewer, func(ctx context.Context) error {
		var stageErr error
		res, stageErr = o.resolver.Resolve(ctx, in.SessionID, in.Username)
		return stageErr
	}); err != nil {
		return live.ReplyOutput{}, err
	}
	out.SessionID = res.SessionID

	var shouldRespond bool
	_ = o.stage(ctx, StateFiltering, func(ctx context.Context) error {
		shouldRespond = o.filter.ShouldRespond(ctx, in.Comment, res.IsFirstTime)
		return nil
	})
	if !shouldRespond {
		o.notify(StateRejected, 0, nil)
		return rejected(res), nil
	}

	var contextText string
	if err = o.stage(ctx, StateBuildingContext, func(ctx context.Context) error {
		var stageErr error
		contextText, stageErr = o.builder.Build(ctx, res, in.Comment)
		return stageErr
	}); err != nil {
		return out, err
	}

	var segments []live.Segment
	if err = o.stage(ctx, StateGenerating, func(ctx context.Context) error {
		var stageErr error
		segments, stageErr = o.generator.Generate(ctx, contextText, res.IsFirstTime)
		return stageErr
	}); err != nil {
		return out, err
	}

	if err = o.stage(ctx, StateArchiving, func(ctx context.Context) error {
		var stageErr error
		out, stageErr = o.archiver.Archive(ctx, res, in.Comment, segments)
		return stageErr
	}); err != nil {
		return live.ReplyOutput{SessionID: res.SessionID}, err
	}

	o.notify(StateDone, 0, nil)
	return out, nil
}

func (o *Orchestrator) stage(ctx context.Context, state State, fn func(ctx context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, "pipeline."+string(state))
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	telemetry.EndSpan(span, err)
	telemetry.ObserveStage(string(state), elapsed)
	o.notify(state, elapsed, err)

	if err != nil {
		return &StageError{State: state, Err: err}
	}
	return nil
}

func (o *Orchestrator) notify(state State, elapsed time.Duration, err error) {
	if o.observe != nil {
		o.observe(state, elapsed, err)
	}
}

func rejected(res viewer.Resolution) live.ReplyOutput {
	return live.ReplyOutput{
		Version:         live.OutputVersion,
		SessionID:       res.SessionID,
		Segments:        []live.Segment{},
		Response:        "",
		Emotion:         string(emotion.Neutral),
		UsernameReading: res.UsernameReading,
		IsFirstTime:     res.IsFirstTime,
		ShouldRespond:   false,
	}
}
