package challenge

import (
	"context"
	"errors"
	"time"

	"backend-strideup/internal/activity"
	"backend-strideup/internal/apperr"
	"backend-strideup/internal/db"
	"backend-strideup/internal/events"
	"backend-strideup/internal/logger"
	"backend-strideup/internal/stats"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeKindMismatch  Outcome = "kind_mismatch"
	OutcomeZeroValue     Outcome = "zero_value"
	OutcomeAlreadyCredit Outcome = "already_credited"
	OutcomeFailed        Outcome = "failed"
)

// Result describes what happened to one (challenge, activity) unit.
type Result struct {
	ChallengeID   string
	ParticipantID string
	Outcome       Outcome
	Value         float64
	Total         float64
	Completed     bool
	Err           error
}

type candidate struct {
	participantID string
	challenge     Challenge
}

// Pipeline credits completed activities to the challenges their owner has
// joined. Every (challenge, activity) pair is credited at most once, so
// running it again for the same activity is harmless.
type Pipeline struct {
	db         db.TxQuerier
	events     events.Publisher
	log        *logger.Logger
	workers    int
	attempts   int
	retryDelay time.Duration
	now        func() time.Time
}

const (
	defaultAttempts   = 3
	defaultRetryDelay = 200 * time.Millisecond
)

func NewPipeline(db db.TxQuerier, pub events.Publisher, log *logger.Logger, workers int) *Pipeline {
	if pub == nil {
		pub = events.Noop{}
	}
	if workers <= 0 {
		workers = 4
	}
	return &Pipeline{
		db:         db,
		events:     pub,
		log:        logger.OrNop(log),
		workers:    workers,
		attempts:   defaultAttempts,
		retryDelay: defaultRetryDelay,
		now:        time.Now,
	}
}

// ActivityCompleted runs the pipeline for a freshly completed activity and
// retries failed pairs. Whatever still fails is logged; the completion itself
// has already committed.
func (p *Pipeline) ActivityCompleted(ctx context.Context, a activity.Activity) {
	results, err := p.Reprocess(ctx, a)
	if err != nil {
		p.log.Error("contribution pipeline", "activity_id", a.ID, "error", err)
		return
	}
	created, failed := 0, 0
	for _, r := range results {
		switch r.Outcome {
		case OutcomeCreated:
			created++
		case OutcomeFailed:
			failed++
			p.log.Error("contribution gave up", "challenge_id", r.ChallengeID, "activity_id", a.ID, "error", r.Err)
		}
	}
	p.log.Info("contributions processed", "activity_id", a.ID, "candidates", len(results), "created", created, "failed", failed)
}

// Process makes a single pass over the activity's candidate challenges.
func (p *Pipeline) Process(ctx context.Context, a activity.Activity) ([]Result, error) {
	if a.Status != activity.StatusCompleted || a.FinishedAt == nil {
		return nil, apperr.StateConflict("activity %s is not completed", a.ID)
	}
	candidates, err := p.candidates(ctx, a)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, a, candidates), nil
}

// Reprocess is Process with up to p.attempts passes over the pairs that
// failed, doubling the pause between passes. Pairs credited by an earlier
// pass come back as already_credited, so it is safe to call again for an
// activity that was handled before.
func (p *Pipeline) Reprocess(ctx context.Context, a activity.Activity) ([]Result, error) {
	if a.Status != activity.StatusCompleted || a.FinishedAt == nil {
		return nil, apperr.StateConflict("activity %s is not completed", a.ID)
	}
	candidates, err := p.candidates(ctx, a)
	if err != nil {
		return nil, err
	}
	results := p.run(ctx, a, candidates)

	delay := p.retryDelay
	for attempt := 2; attempt <= p.attempts; attempt++ {
		var pending []candidate
		var slots []int
		for i, r := range results {
			if r.Outcome == OutcomeFailed {
				pending = append(pending, candidates[i])
				slots = append(slots, i)
			}
		}
		if len(pending) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return results, nil
		case <-time.After(delay):
		}
		delay *= 2

		p.log.Warn("retrying contributions", "activity_id", a.ID, "attempt", attempt, "pending", len(pending))
		for j, r := range p.run(ctx, a, pending) {
			results[slots[j]] = r
		}
	}
	return results, nil
}

func (p *Pipeline) run(ctx context.Context, a activity.Activity, candidates []candidate) []Result {
	results := make([]Result, len(candidates))
	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			results[i] = p.contribute(ctx, a, cand)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// candidates lists the user's participations in challenges running now whose
// window overlaps the activity and which were joined before it finished.
func (p *Pipeline) candidates(ctx context.Context, a activity.Activity) ([]candidate, error) {
	rows, err := p.db.Query(ctx, `
		SELECT cp.id, `+challengeColumns+`
		FROM challenge_participants cp
		JOIN challenges c ON c.id = cp.challenge_id
		WHERE cp.user_id = $1
		  AND c.status <> 'cancelled'
		  AND c.start_date <= $2 AND c.end_date >= $3
		  AND cp.joined_at <= $2
	`, a.UserID, *a.FinishedAt, a.StartedAt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := p.now()
	var out []candidate
	for rows.Next() {
		var participantID string
		var types []string
		var c Challenge
		if err := rows.Scan(&participantID,
			&c.ID, &c.CommunityID, &c.CreatedBy, &c.Title, &c.Description, &c.Type, &c.Scope,
			&types, &c.TargetValue, &c.TargetUnit, &c.StartDate, &c.EndDate, &c.Status, &c.IsRoute, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		c.ActivityTypes = make([]stats.ActivityType, len(types))
		for i, t := range types {
			c.ActivityTypes[i] = stats.ActivityType(t)
		}
		if DerivedStatus(c.Status, c.StartDate, c.EndDate, now) != StatusActive {
			continue
		}
		out = append(out, candidate{participantID: participantID, challenge: c})
	}
	return out, rows.Err()
}

func (p *Pipeline) contribute(ctx context.Context, a activity.Activity, cand candidate) Result {
	c := cand.challenge
	res := Result{ChallengeID: c.ID, ParticipantID: cand.participantID}
	if !c.Qualifies(a.Type) {
		res.Outcome = OutcomeKindMismatch
		return res
	}
	res.Value = ContributionValue(c.Type, a)
	if res.Value <= 0 {
		res.Outcome = OutcomeZeroValue
		return res
	}

	now := p.now()
	err := db.WithTx(ctx, p.db, func(tx pgx.Tx) error {
		// The participant lock serializes totals for concurrent completions.
		if _, err := tx.Exec(ctx, `SELECT 1 FROM challenge_participants WHERE id=$1 FOR UPDATE`, cand.participantID); err != nil {
			return err
		}
		var id string
		err := tx.QueryRow(ctx, `
			INSERT INTO challenge_contributions (id, challenge_id, participant_id, activity_id, value, contributed_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (challenge_id, activity_id) DO NOTHING
			RETURNING id
		`, uuid.NewString(), c.ID, cand.participantID, a.ID, res.Value, now).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			res.Outcome = OutcomeAlreadyCredit
			return nil
		}
		if err != nil {
			return err
		}

		var total float64
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(value), 0) FROM challenge_contributions
			WHERE challenge_id=$1 AND participant_id=$2
		`, c.ID, cand.participantID).Scan(&total); err != nil {
			return err
		}
		res.Total = stats.Round(total, 2)
		res.Completed = c.Scope == ScopeIndividual && res.Total >= c.TargetValue
		if _, err := tx.Exec(ctx, `
			UPDATE challenge_participants SET total_contributed=$2, is_completed=$3, updated_at=$4
			WHERE id=$1
		`, cand.participantID, res.Total, res.Completed, now); err != nil {
			return err
		}
		res.Outcome = OutcomeCreated
		return nil
	})
	if err != nil {
		p.log.Error("contribution failed", "challenge_id", c.ID, "activity_id", a.ID, "error", err)
		return Result{ChallengeID: c.ID, ParticipantID: cand.participantID, Outcome: OutcomeFailed, Value: res.Value, Err: err}
	}

	if res.Outcome == OutcomeCreated {
		err := p.events.ContributionCreated(ctx, events.ContributionCreated{
			ChallengeID:   c.ID,
			ParticipantID: cand.participantID,
			UserID:        a.UserID,
			ActivityID:    a.ID,
			Value:         res.Value,
			Total:         res.Total,
			Completed:     res.Completed,
			ContributedAt: now,
		})
		if err != nil {
			p.log.Warn("publish contribution", "challenge_id", c.ID, "error", err)
		}
	}
	return res
}
