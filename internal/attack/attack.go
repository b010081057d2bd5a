package attack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bytebuggy/bytebuggy/internal/clock"
	"github.com/bytebuggy/bytebuggy/internal/config"
	"github.com/bytebuggy/bytebuggy/internal/result"
	"github.com/bytebuggy/bytebuggy/internal/scan"
	"github.com/bytebuggy/bytebuggy/internal/session"
	"github.com/bytebuggy/bytebuggy/internal/telemetry"
	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

var (
	// ErrFakeAuthRequired is returned by the WEP attack when fake authentication
	// failed and the configuration demands it.
	ErrFakeAuthRequired = errors.New("fake authentication required but failed")
	// ErrInterrupted means the operator interrupted a running attack.
	ErrInterrupted = errors.New("attack interrupted")
	// ErrAborted means the operator interrupted a prompt; everything stops.
	ErrAborted = errors.New("aborted by operator")
)

// Attack is one strategy against one target. A nil result with a nil error is
// a plain failure.
type Attack interface {
	Name() string
	Run(ctx context.Context, target *wifi.Target) (*result.CrackResult, error)
}

// StatusUpdate represents a real-time status message from an attack.
type StatusUpdate struct {
	Attack    string
	Target    string
	Technique string
	Message   string
	Progress  float64 // 0.0 - 1.0
	Done      bool
	Success   bool
}

// Deps are the collaborators shared by every attack.
type Deps struct {
	Capture   scan.CaptureController
	Injection InjectionController
	Recovery  RecoveryController
	Validator HandshakeValidator
	Prompter  Prompter
	Clock     clock.Clock
	Session   *session.Session
	Status    chan<- StatusUpdate
}

func (d Deps) send(s StatusUpdate) {
	if d.Status == nil {
		return
	}
	select {
	case d.Status <- s:
	default:
	}
}

// Orchestrator sequences attacks against targets.
type Orchestrator struct {
	cfg   *config.Config
	deps  Deps
	store *result.Store

	// queueFor builds the attack queue for a target.
	queueFor func(*wifi.Target) []Attack
}

func NewOrchestrator(cfg *config.Config, store *result.Store, deps Deps) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	o := &Orchestrator{cfg: cfg, deps: deps, store: store}
	o.queueFor = o.buildQueue
	return o
}

func (o *Orchestrator) buildQueue(t *wifi.Target) []Attack {
	switch t.Encryption {
	case wifi.EncWEP:
		if o.cfg.Attack.WPAOnly {
			return nil
		}
		return []Attack{NewWEPAttack(o.cfg.Attack.WEP, o.deps)}
	case wifi.EncWPA, wifi.EncWPA2:
		if o.cfg.Attack.WEPOnly {
			return nil
		}
		return []Attack{NewWPAAttack(o.cfg.Attack.WPA, o.cfg.Output.HandshakeDir, o.deps)}
	case wifi.EncOpen, wifi.EncWPA3:
		return nil
	}
	return nil
}

// AttackAll attacks targets in order and returns how many were attempted. The
// error is non-nil only when the run was aborted or ctx ended.
func (o *Orchestrator) AttackAll(ctx context.Context, targets []*wifi.Target) (int, error) {
	attacked := 0
	defer o.deps.Session.SetCurrent("")

	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return attacked, err
		}
		attacked++
		remaining := len(targets) - i - 1

		o.deps.Session.SetCurrent(target.Key())
		o.deps.Session.MarkAttacked(target.Key())
		slog.Info("starting attacks", "n", i+1, "of", len(targets), "bssid", target.Key(), "essid", target.Name())
		o.deps.send(StatusUpdate{
			Target:  target.Name(),
			Message: fmt.Sprintf("(%d/%d) Starting attacks against %s (%s)", i+1, len(targets), target.Key(), essidLabel(target)),
		})

		keepGoing, err := o.attackTarget(ctx, target, remaining)
		if err != nil {
			return attacked, err
		}
		if !keepGoing {
			break
		}
	}
	return attacked, nil
}

func (o *Orchestrator) attackTarget(ctx context.Context, target *wifi.Target, targetsRemaining int) (bool, error) {
	queue := o.queueFor(target)
	if len(queue) == 0 {
		slog.Warn("no attacks available", "bssid", target.Key(), "enc", target.Encryption.String())
		o.deps.send(StatusUpdate{Target: target.Name(), Message: "Unable to attack: no attacks available", Done: true})
		return true, nil
	}

	for len(queue) > 0 {
		atk := queue[0]
		queue = queue[1:]

		o.deps.send(StatusUpdate{Attack: atk.Name(), Target: target.Name(), Message: "Starting..."})
		res, err := atk.Run(ctx, target)
		switch {
		case err == nil && res != nil:
			telemetry.AttacksTotal.WithLabelValues(atk.Name(), telemetry.OutcomeSuccess).Inc()
			o.persist(target, atk, res)
			return true, nil

		case err == nil:
			telemetry.AttacksTotal.WithLabelValues(atk.Name(), telemetry.OutcomeFailure).Inc()
			o.deps.send(StatusUpdate{Attack: atk.Name(), Target: target.Name(), Message: "Failed", Done: true})

		case errors.Is(err, ErrInterrupted):
			telemetry.AttacksTotal.WithLabelValues(atk.Name(), telemetry.OutcomeInterrupted).Inc()
			choice, err := o.askContinue(ctx, len(queue), targetsRemaining)
			if err != nil {
				return false, err
			}
			switch choice {
			case choiceContinue:
				queue = append([]Attack{atk}, queue...)
			case choiceSkip:
				return true, nil
			case choiceExit:
				return false, nil
			}

		case errors.Is(err, ErrAborted):
			telemetry.AttacksTotal.WithLabelValues(atk.Name(), telemetry.OutcomeInterrupted).Inc()
			return false, err

		case ctx.Err() != nil:
			return false, ctx.Err()

		default:
			telemetry.AttacksTotal.WithLabelValues(atk.Name(), telemetry.OutcomeError).Inc()
			slog.Error("attack failed", "attack", atk.Name(), "bssid", target.Key(), "err", err)
			o.deps.send(StatusUpdate{Attack: atk.Name(), Target: target.Name(), Message: fmt.Sprintf("Failed: %v", err), Done: true})
		}
	}
	return true, nil
}

func (o *Orchestrator) persist(target *wifi.Target, atk Attack, res *result.CrackResult) {
	o.deps.Session.MarkCracked(target.Key())
	o.deps.send(StatusUpdate{
		Attack:  atk.Name(),
		Target:  target.Name(),
		Message: fmt.Sprintf("%s attack successful: %s", atk.Name(), res.DisplayKey()),
		Done:    true,
		Success: true,
	})

	if o.store == nil {
		return
	}
	saved, err := o.store.Save(res)
	if err != nil {
		slog.Warn("could not save result", "bssid", res.BSSID, "file", o.store.Path(), "err", err)
		return
	}
	if saved {
		telemetry.ResultsSaved.WithLabelValues(string(res.Kind)).Inc()
		slog.Info("result saved", "bssid", res.BSSID, "file", o.store.Path())
	}
}

type continueChoice int

const (
	choiceContinue continueChoice = iota
	choiceSkip
	choiceExit
)

// askContinue asks what to do after an interrupted attack. With nothing left to
// do it resolves to skip without asking.
func (o *Orchestrator) askContinue(ctx context.Context, attacksRemaining, targetsRemaining int) (continueChoice, error) {
	if attacksRemaining == 0 && targetsRemaining == 0 {
		return choiceSkip, nil
	}

	var remain []string
	if attacksRemaining > 0 {
		remain = append(remain, fmt.Sprintf("%d attack(s)", attacksRemaining))
	}
	if targetsRemaining > 0 {
		remain = append(remain, fmt.Sprintf("%d target(s)", targetsRemaining))
	}
	options := "C"
	question := "continue attacking"
	if targetsRemaining > 0 {
		options += ", s"
		question += ", skip to the next target"
	}
	msg := fmt.Sprintf("%s remain\nDo you want to %s or exit (%s, e)? ", strings.Join(remain, " and "), question, options)

	answer, err := o.deps.Prompter.Ask(ctx, msg)
	if err != nil {
		if ctx.Err() != nil {
			return choiceExit, ctx.Err()
		}
		return choiceExit, fmt.Errorf("%w: %v", ErrAborted, err)
	}
	switch a := strings.ToLower(strings.TrimSpace(answer)); {
	case strings.HasPrefix(a, "s"):
		return choiceSkip, nil
	case strings.HasPrefix(a, "e"):
		return choiceExit, nil
	}
	return choiceContinue, nil
}

func essidLabel(t *wifi.Target) string {
	if t.ESSIDKnown {
		return t.ESSID
	}
	return "ESSID unknown"
}
