// Package policy matches an ordered list of criteria-based policy sections
// against individual channels and resolves the first terminal match into a
// merged fee policy.
package policy

import (
	"context"
	"log"

	"github.com/dmp1ce/charge-lnd/internal/scid"
)

// StrategyKey marks a section as terminal: a section declaring a strategy
// ends the resolution scan for a channel.
const StrategyKey = "strategy"

// DefaultPolicyName is the name reported for a resolution closed by the
// default section.
const DefaultPolicyName = "default"

// Definition is one named policy section in declaration order.
type Definition struct {
	Name    string
	Section *Section
}

// Resolved is the outcome of a successful resolution: the name of the
// terminal policy, its strategy, and the option snapshot merged across every
// matched section.
type Resolved struct {
	Name     string
	Strategy string
	Config   *Section
}

// Outcome classifies one channel's resolution.
type Outcome int

const (
	// OutcomeResolved means a terminal policy matched.
	OutcomeResolved Outcome = iota
	// OutcomeDefaulted means no terminal policy matched and the default
	// section closed the resolution.
	OutcomeDefaulted
	// OutcomeUnresolved means no policy applies to the channel. Not an error.
	OutcomeUnresolved
	// OutcomeFailed means evaluating some policy for this channel failed.
	// Other channels are unaffected.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeDefaulted:
		return "defaulted"
	case OutcomeUnresolved:
		return "unresolved"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is one channel's resolution result. Policy is set for
// OutcomeResolved and OutcomeDefaulted; Err and FailedPolicy for
// OutcomeFailed.
type Result struct {
	Outcome      Outcome
	Policy       *Resolved
	FailedPolicy string
	Err          error
}

// Resolver evaluates the configured policies, in declaration order, for one
// channel at a time. It is safe for concurrent use across channels as long as
// the Gateway is.
type Resolver struct {
	gateway    Gateway
	logger     *log.Logger
	policies   []Definition
	defaultSec *Section
}

func NewResolver(gateway Gateway, policies []Definition, defaultSec *Section, logger *log.Logger) *Resolver {
	return &Resolver{
		gateway:    gateway,
		logger:     logger,
		policies:   policies,
		defaultSec: defaultSec,
	}
}

// Resolve scans the policies in order for channel. Matched non-terminal
// sections contribute their keys to the merged snapshot; the first matched
// section declaring a strategy closes the scan. With no terminal match the
// default section applies, if configured and itself terminal. Any evaluation
// error fails this channel only.
func (r *Resolver) Resolve(ctx context.Context, channel Channel) Result {
	merged := NewSection()

	for _, def := range r.policies {
		ok, err := r.matchesPolicy(ctx, channel, def.Name, def.Section)
		if err != nil {
			r.logger.Printf("error evaluating criteria for channel %s in policy %q, ignoring channel: %v",
				scid.Format(channel.ChanID), def.Name, err)
			return Result{Outcome: OutcomeFailed, FailedPolicy: def.Name, Err: err}
		}
		if !ok {
			continue
		}

		merged.Merge(def.Section)
		if strategy := def.Section.Get(StrategyKey, ""); strategy != "" {
			return Result{
				Outcome: OutcomeResolved,
				Policy:  &Resolved{Name: def.Name, Strategy: strategy, Config: merged},
			}
		}
	}

	if r.defaultSec != nil {
		merged.Merge(r.defaultSec)
		if strategy := r.defaultSec.Get(StrategyKey, ""); strategy != "" {
			return Result{
				Outcome: OutcomeDefaulted,
				Policy:  &Resolved{Name: DefaultPolicyName, Strategy: strategy, Config: merged},
			}
		}
	}

	return Result{Outcome: OutcomeUnresolved}
}
