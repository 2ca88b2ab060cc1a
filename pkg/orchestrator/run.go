package orchestrator

import (
	"context"
	"sync"

	"github.com/omnicore/agentrt/pkg/agent"
)

// StopPredicate lets a caller halt a sequential run early based on the
// latest response (spec §4.G "runSequential(order[], maxTurns, stop?)").
type StopPredicate func(resp agent.Message) bool

// RunSequential feeds each agent's output to the next in order,
// stopping on error or when stop returns true. maxTurns bounds how
// many times the full order is repeated.
func (o *Orchestrator) RunSequential(ctx context.Context, order []string, maxTurns int, initial agent.Message, stop StopPredicate) ([]agent.Message, error) {
	if maxTurns <= 0 {
		maxTurns = 1
	}

	msg := initial
	var responses []agent.Message
	for turn := 0; turn < maxTurns; turn++ {
		for _, id := range order {
			resp, err := o.SendToAgent(ctx, id, msg)
			responses = append(responses, resp)
			if err != nil {
				return responses, err
			}
			if stop != nil && stop(resp) {
				return responses, nil
			}
			msg = resp
		}
	}
	return responses, nil
}

// RunRoundRobin is runSequential specialized to repeat the same order
// for a fixed number of rounds with no stop predicate (spec §4.G).
func (o *Orchestrator) RunRoundRobin(ctx context.Context, order []string, rounds int, initial agent.Message) ([]agent.Message, error) {
	return o.RunSequential(ctx, order, rounds, initial, nil)
}

// BroadcastResult pairs an agent id with its response to a broadcast
// message.
type BroadcastResult struct {
	AgentID  string
	Response agent.Message
	Err      error
}

// RunBroadcast fans a single message out to every named agent in
// parallel; per-agent errors become error messages rather than
// aborting the others (spec §4.G "runBroadcast").
func (o *Orchestrator) RunBroadcast(ctx context.Context, ids []string, msg agent.Message) []BroadcastResult {
	results := make([]BroadcastResult, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := o.SendToAgent(ctx, id, msg)
			results[i] = BroadcastResult{AgentID: id, Response: resp, Err: err}
		}()
	}
	wg.Wait()
	return results
}
