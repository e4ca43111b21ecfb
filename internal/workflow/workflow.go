// Package workflow sequences one solver run: request a challenge, download its
// resource when there is one, and submit the answer.
//
// The state machine is
//
//	INIT → CHALLENGE_REQUESTED → RESOURCE_FETCHED | RESOURCE_SKIPPED → SUBMITTED → DONE
//
// with FAILED absorbing any fatal error. Download problems are logged and move
// the run to RESOURCE_SKIPPED; they never fail it.
package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/webhook-solver/internal/answer"
	"github.com/jmerrifield20/webhook-solver/internal/challenge"
	"github.com/jmerrifield20/webhook-solver/internal/credential"
	"github.com/jmerrifield20/webhook-solver/internal/errs"
	"github.com/jmerrifield20/webhook-solver/internal/resource"
	"github.com/jmerrifield20/webhook-solver/internal/submission"
)

// State is a workflow state.
type State string

const (
	StateInit               State = "INIT"
	StateChallengeRequested State = "CHALLENGE_REQUESTED"
	StateResourceFetched    State = "RESOURCE_FETCHED"
	StateResourceSkipped    State = "RESOURCE_SKIPPED"
	StateSubmitted          State = "SUBMITTED"
	StateDone               State = "DONE"
	StateFailed             State = "FAILED"
)

// ChallengeRequester is satisfied by *challenge.Requester.
type ChallengeRequester interface {
	Request(ctx context.Context, id challenge.Identity) (*challenge.Challenge, error)
}

// ResourceFetcher is satisfied by *resource.Fetcher.
type ResourceFetcher interface {
	FetchIfPresent(ctx context.Context, ch *challenge.Challenge, destination string) (*resource.Artifact, error)
}

// AnswerSubmitter is satisfied by *submission.Submitter.
type AnswerSubmitter interface {
	Submit(ctx context.Context, ch *challenge.Challenge, answer string) (*submission.Result, error)
}

// TransitionRecorder is an optional hook called on every state change.
type TransitionRecorder interface {
	RecordTransition(state string)
}

// Outcome is everything a run produced. It is returned on success and on
// failure, so the caller can always report how far the run got.
type Outcome struct {
	RunID       uuid.UUID
	State       State
	History     []State
	Challenge   *challenge.Challenge
	Credential  *credential.Info
	Artifact    *resource.Artifact
	DownloadErr error
	Submission  *submission.Result
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Succeeded reports whether the run reached DONE.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.State == StateDone
}

// Config holds the per-run inputs.
type Config struct {
	Identity    challenge.Identity
	Destination string
}

// Orchestrator runs the workflow.
type Orchestrator struct {
	requester ChallengeRequester
	fetcher   ResourceFetcher
	submitter AnswerSubmitter
	answers   answer.Provider
	cfg       Config
	recorder  TransitionRecorder
	now       func() time.Time
	logger    *zap.Logger
}

// New creates an Orchestrator.
func New(
	requester ChallengeRequester,
	fetcher ResourceFetcher,
	submitter AnswerSubmitter,
	answers answer.Provider,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Destination == "" {
		cfg.Destination = resource.DefaultDestination
	}
	return &Orchestrator{
		requester: requester,
		fetcher:   fetcher,
		submitter: submitter,
		answers:   answers,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// SetTransitionRecorder configures the state-change hook.
func (o *Orchestrator) SetTransitionRecorder(r TransitionRecorder) {
	o.recorder = r
}

// Run executes one pass of the workflow. The returned error is non-nil only
// for fatal failures, in which case Outcome.State is FAILED.
func (o *Orchestrator) Run(ctx context.Context) (*Outcome, error) {
	out := &Outcome{
		RunID:     uuid.New(),
		StartedAt: o.now().UTC(),
	}
	log := o.logger.With(zap.String("run_id", out.RunID.String()))
	o.transition(log, out, StateInit)

	// 1. Registration. Any error is fatal.
	ch, err := o.requester.Request(ctx, o.cfg.Identity)
	if err != nil {
		return o.fail(log, out, err, "challenge request failed")
	}
	out.Challenge = ch
	o.transition(log, out, StateChallengeRequested)
	o.inspectCredential(log, out)

	// 2. Optional download. Errors are logged, never fatal.
	art, err := o.fetcher.FetchIfPresent(ctx, ch, o.cfg.Destination)
	switch {
	case err != nil:
		out.DownloadErr = err
		log.Warn("question download failed; continuing without it",
			zap.String("kind", errs.KindOf(err)),
			zap.Error(err),
		)
		o.transition(log, out, StateResourceSkipped)
	case art == nil:
		o.transition(log, out, StateResourceSkipped)
	default:
		out.Artifact = art
		o.transition(log, out, StateResourceFetched)
	}

	// 3. Submission. Only errors below HTTP are fatal.
	text, err := o.answers.Answer(ctx)
	if err != nil {
		return o.fail(log, out, err, "no answer to submit")
	}
	res, err := o.submitter.Submit(ctx, ch, text)
	if err != nil {
		return o.fail(log, out, err, "submission failed")
	}
	out.Submission = res
	o.transition(log, out, StateSubmitted)

	// 4. Done, whatever status the submission returned.
	out.FinishedAt = o.now().UTC()
	o.transition(log, out, StateDone)
	log.Info("workflow complete",
		zap.Int("submission_status", res.StatusCode),
		zap.Duration("elapsed", out.FinishedAt.Sub(out.StartedAt)),
	)
	return out, nil
}

func (o *Orchestrator) inspectCredential(log *zap.Logger, out *Outcome) {
	token, ok := out.Challenge.Credential.Get()
	if !ok {
		log.Warn("registration returned no accessToken; submission will be unauthenticated")
		return
	}
	info, err := credential.Inspect(token)
	out.Credential = info
	if err != nil {
		log.Debug("access token is not a JWT", zap.Error(err))
		return
	}
	now := o.now()
	switch {
	case info.Expired(now):
		log.Warn("access token already expired", zap.Time("expires_at", info.ExpiresAt))
	case info.HasExpiry():
		log.Info("access token valid",
			zap.Time("expires_at", info.ExpiresAt),
			zap.Duration("remaining", info.Remaining(now)),
		)
	}
}

func (o *Orchestrator) fail(log *zap.Logger, out *Outcome, err error, msg string) (*Outcome, error) {
	out.Err = err
	out.FinishedAt = o.now().UTC()
	o.transition(log, out, StateFailed)
	log.Error(msg, zap.String("kind", errs.KindOf(err)), zap.Error(err))
	return out, err
}

func (o *Orchestrator) transition(log *zap.Logger, out *Outcome, next State) {
	out.State = next
	out.History = append(out.History, next)
	if o.recorder != nil {
		o.recorder.RecordTransition(string(next))
	}
	log.Debug("workflow transition", zap.String("state", string(next)))
}
