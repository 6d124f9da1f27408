package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/ledgersync/ledgersync/app/models"
	"github.com/ledgersync/ledgersync/internal/pkg/plans"
)

// Dispatcher routes verified events to their transition and applies the
// resulting account mutation and audit record in one transaction. All
// collaborators are injected so tests can substitute fakes.
type Dispatcher struct {
	repo        Repository
	catalog     plans.Resolver
	transitions map[Kind]transition
}

// NewDispatcher creates a dispatcher from an injected repository and plan
// catalog.
func NewDispatcher(repo Repository, catalog plans.Resolver) *Dispatcher {
	return &Dispatcher{
		repo:        repo,
		catalog:     catalog,
		transitions: transitions(),
	}
}

// Process reconciles one event against the account ledger and always returns
// a well-formed report, whatever failed along the way.
func (d *Dispatcher) Process(ctx context.Context, ev *Event) *Report {
	rep := NewReport()

	processed, err := d.repo.AlreadyProcessed(ev.ID)
	if err != nil {
		rep.Received = false
		rep.addError(fmt.Sprintf("storage failure checking event %s: %v", ev.ID, err))
		log.Errorf("[Reconcile] Idempotency check failed for %s: %v", ev.ID, err)
		return rep
	}
	if processed {
		// Duplicate delivery is a success under the idempotence contract.
		log.Infof("[Reconcile] Skipping duplicate event %s (%s)", ev.ID, ev.Kind)
		return rep
	}

	tr, ok := d.transitions[ev.Kind]
	if !ok {
		log.Infof("[Reconcile] Ignoring unhandled event type %s (%s)", ev.Kind, ev.ID)
		rep.addUpdate(fmt.Sprintf("Ignored unhandled event type %s", ev.Kind))
		return rep
	}

	email := tr.identify(ev)
	rep.setEmail(email)

	var update string
	err = d.repo.Transact(ctx, func(tx Repository) error {
		var acct *models.Account
		if email != "" {
			var err error
			acct, err = tx.FindAccountForUpdate(email)
			if err != nil {
				return err
			}
		}

		next, desc, err := d.applyGuarded(ctx, tr, ev, acct)
		if err != nil {
			return err
		}
		update = desc

		if next != nil {
			if err := next.Validate(); err != nil {
				return &PayloadError{Kind: ev.Kind, Err: err}
			}
			if err := tx.SaveAccount(next); err != nil {
				return err
			}
		}

		created, err := tx.RecordEvent(&models.ProcessedEvent{
			EventID:     ev.ID,
			EventType:   string(ev.Kind),
			PayloadJSON: string(ev.Raw),
			Email:       email,
		})
		if err != nil {
			return err
		}
		if !created {
			// Another worker committed this event while we waited on the
			// row lock; our mutation must not apply twice.
			return errConcurrentlyProcessed
		}
		return nil
	})

	switch {
	case err == nil:
		rep.addUpdate(update)
		rep.addUpdate(fmt.Sprintf("Recorded event %s for %s", ev.ID, rep.Email))
	case errors.Is(err, errConcurrentlyProcessed):
		log.Infof("[Reconcile] Event %s lost duplicate race, treated as processed", ev.ID)
	case isBusinessError(err):
		rep.addError(err.Error())
		log.Warnf("[Reconcile] Event %s (%s) not applied: %v", ev.ID, ev.Kind, err)
	default:
		rep.Received = false
		rep.addError(fmt.Sprintf("storage failure processing event %s: %v", ev.ID, err))
		log.Errorf("[Reconcile] Transaction failed for %s: %v", ev.ID, err)
	}
	return rep
}

// applyGuarded invokes the transition with panic isolation: a failure in one
// handler must never take down processing of other events.
func (d *Dispatcher) applyGuarded(ctx context.Context, tr transition, ev *Event, acct *models.Account) (next *models.Account, desc string, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, desc = nil, ""
			err = &handlerPanicError{value: r}
		}
	}()
	return tr.apply(ctx, ev, acct, d.catalog)
}
