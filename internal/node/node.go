package node

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kolibri-v0/internal/config"
	"kolibri-v0/internal/evolve"
	"kolibri-v0/internal/knowledge"
	"kolibri-v0/internal/ledger"
	"kolibri-v0/internal/telemetry"
	"kolibri-v0/internal/wire"
)

// Audit event names written to the ledger.
const (
	EventBoot      = "BOOT"
	EventTeach     = "TEACH"
	EventTeachText = "TEACH_TEXT"
	EventAsk       = "ASK"
	EventEvolve    = "EVOLVE"
	EventFeedback  = "USER_FEEDBACK"
	EventSyncSent  = "SYNC_SENT"
	EventSyncRecv  = "SYNC_RECV"
)

var ErrNoAnswer = errors.New("node: no answer given yet, nothing to rate")

// Runtime composes one ledger, one pool and the peer transport. It is the
// single owner of all of them: callers funnel every command through one
// Runtime goroutine, so no internal locking.
type Runtime struct {
	opts     config.Options
	log      *slog.Logger
	session  string
	ledger   *ledger.Ledger
	pool     *evolve.Pool
	listener *wire.Listener
	index    *knowledge.DB

	// gene behind the most recent answer, the target of Feedback
	lastGene    evolve.Gene
	hasLastGene bool
}

// New opens the ledger (verifying the whole chain), seeds the population
// and starts the peer listener if a port is configured. A ledger that
// fails verification refuses to start the node.
func New(opts config.Options, log *slog.Logger) (*Runtime, error) {
	if log == nil {
		log = slog.Default()
	}
	led, err := ledger.Open(opts.GenomePath, opts.HMACKey)
	if err != nil {
		return nil, fmt.Errorf("node: open genome: %w", err)
	}

	r := &Runtime{
		opts:    opts,
		log:     log,
		session: uuid.NewString(),
		ledger:  led,
		pool:    evolve.NewPool(opts.Seed),
	}

	if opts.IndexPath != "" {
		idx, err := knowledge.Open(opts.IndexPath)
		if err != nil {
			_ = led.Close()
			return nil, fmt.Errorf("node: open index: %w", err)
		}
		r.index = idx
	}

	if opts.ListenPort != 0 {
		l, err := wire.StartListener(opts.ListenPort)
		if err != nil {
			r.shutdown()
			return nil, err
		}
		r.listener = l
	}

	r.record(EventBoot, fmt.Sprintf("node %d session %s", opts.NodeID, r.session))
	log.Info("node online",
		"node_id", opts.NodeID, "session", r.session,
		"genome", opts.GenomePath, "listen_port", opts.ListenPort)
	return r, nil
}

func (r *Runtime) NodeID() uint32  { return r.opts.NodeID }
func (r *Runtime) Session() string { return r.session }

// record appends an audit event; audit failures are logged and counted
// but never abort the command that caused them.
func (r *Runtime) record(event, payload string) {
	if _, err := r.ledger.Append(event, payload); err != nil {
		telemetry.LedgerFailures.Inc()
		r.log.Error("audit append failed", "event", event, "err", err)
		return
	}
	telemetry.LedgerAppends.WithLabelValues(event).Inc()
}

// RecordEvent lets collaborators append a custom audit event.
func (r *Runtime) RecordEvent(event, payload string) {
	r.record(event, payload)
}

// Teach adds one numeric example.
func (r *Runtime) Teach(input, target int) error {
	if err := r.pool.AddExample(input, target); err != nil {
		return err
	}
	telemetry.Examples.Inc()
	r.record(EventTeach, fmt.Sprintf("%d -> %d", input, target))
	return nil
}

// TeachText adds one verbatim question/answer pair.
func (r *Runtime) TeachText(question, answer string) error {
	err := r.pool.AddAssociation(question, answer, "user", uint64(time.Now().Unix()))
	if err != nil {
		return err
	}
	telemetry.Associations.Inc()
	if r.index != nil {
		if ierr := r.index.RecordAssociation(question, answer, "user"); ierr != nil {
			r.log.Error("index association failed", "err", ierr)
		}
	}
	r.record(EventTeachText, fmt.Sprintf("%s = %s", question, answer))
	return nil
}

// Ask evaluates the best formula on a numeric input. The answering gene
// is remembered so the next Feedback call can target it.
func (r *Runtime) Ask(input int) (int, error) {
	best := r.pool.Best()
	answer, err := best.Apply(input)
	if err != nil {
		telemetry.Asks.WithLabelValues("error").Inc()
		return 0, err
	}
	r.lastGene = best.Gene
	r.hasLastGene = true
	telemetry.Asks.WithLabelValues("numeric").Inc()
	r.record(EventAsk, fmt.Sprintf("f(%d) = %d", input, answer))
	return answer, nil
}

// AskText answers a taught question verbatim if the best formula knows
// it, else falls back to the numeric rule over the question's hash.
func (r *Runtime) AskText(question string) (string, error) {
	best := r.pool.Best()
	hash := evolve.HashText(question)
	r.lastGene = best.Gene
	r.hasLastGene = true
	if answer, ok := best.LookupAnswer(hash); ok {
		telemetry.Asks.WithLabelValues("association").Inc()
		r.record(EventAsk, fmt.Sprintf("%s = %s", question, answer))
		return answer, nil
	}
	value, err := best.Apply(hash)
	if err != nil {
		telemetry.Asks.WithLabelValues("error").Inc()
		return "", err
	}
	telemetry.Asks.WithLabelValues("numeric").Inc()
	answer := fmt.Sprintf("%d", value)
	r.record(EventAsk, fmt.Sprintf("%s = %s", question, answer))
	return answer, nil
}

// Evolve runs the given number of generations.
func (r *Runtime) Evolve(generations int) {
	if generations <= 0 {
		generations = 1
	}
	r.pool.Tick(generations)
	telemetry.Generations.Add(float64(generations))
	telemetry.BestFitness.Set(r.pool.Best().Fitness)
	r.record(EventEvolve, fmt.Sprintf("%d generations", generations))
}

// Feedback rates the most recent answer. Positive reinforces the gene
// that produced it, negative demotes it. The signal clamps to [-1, 1].
func (r *Runtime) Feedback(delta float64) error {
	if !r.hasLastGene {
		return ErrNoAnswer
	}
	if delta > 1 {
		delta = 1
	}
	if delta < -1 {
		delta = -1
	}
	if err := r.pool.Feedback(r.lastGene, delta); err != nil {
		return err
	}
	direction := "up"
	if delta < 0 {
		direction = "down"
	}
	telemetry.FeedbackEvents.WithLabelValues(direction).Inc()
	telemetry.BestFitness.Set(r.pool.Best().Fitness)
	r.record(EventFeedback, fmt.Sprintf("%+.3f", delta))
	return nil
}

// Snapshot is the externally visible node state.
type Snapshot struct {
	NodeID       uint32  `json:"node_id"`
	Session      string  `json:"session"`
	BestFormula  string  `json:"best_formula"`
	BestFitness  float64 `json:"best_fitness"`
	Examples     int     `json:"examples"`
	Associations int     `json:"associations"`
	LedgerIndex  uint64  `json:"ledger_index"`
}

func (r *Runtime) Status() Snapshot {
	best := r.pool.Best()
	return Snapshot{
		NodeID:       r.opts.NodeID,
		Session:      r.session,
		BestFormula:  best.Describe(),
		BestFitness:  best.Fitness,
		Examples:     r.pool.ExampleCount(),
		Associations: r.pool.AssociationCount(),
		LedgerIndex:  r.ledger.NextIndex(),
	}
}

// SharePeer pushes the best formula to one peer.
func (r *Runtime) SharePeer(host string, port uint16) error {
	best := r.pool.Best()
	err := wire.ShareFormula(host, port, r.opts.NodeID, best.Digits(), best.Fitness)
	if err != nil {
		r.log.Warn("share failed", "host", host, "port", port, "err", err)
		return err
	}
	telemetry.MigrationsOut.Inc()
	r.record(EventSyncSent, fmt.Sprintf("%s:%d fitness %.6f", host, port, best.Fitness))
	return nil
}

// PollPeers checks the listener for one peer conversation and folds any
// migrated rule into the population. Returns whether a rule arrived.
// Transport and decode failures skip the round rather than fail the node.
func (r *Runtime) PollPeers(timeout time.Duration) (bool, error) {
	if r.listener == nil {
		return false, nil
	}
	msg, err := r.listener.Poll(timeout)
	if err != nil {
		r.log.Warn("peer poll failed", "err", err)
		return false, err
	}
	rule, ok := msg.(wire.MigrateRule)
	if !ok {
		return false, nil
	}
	gene, err := evolve.GeneFromDigits(rule.Digits)
	if err != nil {
		r.log.Warn("peer sent malformed gene", "node_id", rule.NodeID, "err", err)
		return false, nil
	}
	r.pool.Fold(gene, rule.Fitness)
	telemetry.MigrationsIn.Inc()
	r.record(EventSyncRecv, fmt.Sprintf("node %d fitness %.6f", rule.NodeID, rule.Fitness))
	r.log.Info("folded peer rule", "node_id", rule.NodeID, "fitness", rule.Fitness)
	return true, nil
}

func (r *Runtime) shutdown() {
	if r.listener != nil {
		_ = r.listener.Close()
		r.listener = nil
	}
	if r.index != nil {
		_ = r.index.Close()
		r.index = nil
	}
	if r.ledger != nil {
		_ = r.ledger.Close()
	}
}

// Close releases the listener, index and ledger. Safe to call twice.
func (r *Runtime) Close() error {
	r.shutdown()
	return nil
}
