package stream

import (
	"context"

	"github.com/hypermedia-labs/jsonapi-stream/pkg/document"
)

// Relationships maps an expanded relationship field to the nested sequence
// of its related resources. Nil when no expansion was requested.
type Relationships map[string]*Sequence

// Visitor receives one pulled resource and its expanded relationships.
// Returning an error aborts the Consume call.
type Visitor func(res *document.Resource, rels Relationships) error

// ContinueFunc raises a consumed sequence's cap so that a further Consume
// can deliver more elements. It is the sequence's AddMore operation.
type ContinueFunc func(n int)

// ConsumeOption adjusts how Consume drives the sequence.
type ConsumeOption func(*consumeOptions)

type consumeOptions struct {
	preserveOrder bool
}

// PreserveOrder queues visitor invocations while elements arrive and runs
// them strictly in arrival order once the pull phase has finished. Use it
// when visitor side effects are ordering-sensitive; it gives up the
// overlap between fetching and visitor work.
func PreserveOrder() ConsumeOption {
	return func(o *consumeOptions) { o.preserveOrder = true }
}

// Consume pulls every deliverable element from the sequence and invokes
// visit once per element with the resource and its expanded relationships.
//
// It returns (nil, nil) when the sequence is fully exhausted, or a
// ContinueFunc when the cap stopped delivery while more elements may
// exist; invoking the ContinueFunc and consuming again resumes where
// delivery stopped. A pull or visitor failure aborts the call with that
// error: visits already made stay made, and the sequence remains valid,
// so a caller may consume again to retry.
func (s *Sequence) Consume(ctx context.Context, visit Visitor, opts ...ConsumeOption) (ContinueFunc, error) {
	var o consumeOptions
	for _, opt := range opts {
		opt(&o)
	}

	var queue *consumerQueue
	if o.preserveOrder {
		queue = &consumerQueue{}
	}

	for {
		res, ok, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if res == nil {
			// Pages may carry null entries; they never reach the visitor.
			continue
		}

		rels := s.expand(res)

		if queue != nil {
			queue.enqueue(func() error { return visit(res, rels) })
			continue
		}
		if err := visit(res, rels); err != nil {
			return nil, err
		}
	}

	if err := queue.drain(); err != nil {
		return nil, err
	}

	if s.CanContinue() {
		return s.AddMore, nil
	}
	return nil, nil
}

// consumerQueue is the ordered task queue behind PreserveOrder: visitor
// thunks are enqueued as elements arrive and drained sequentially, each
// invocation finishing before the next begins.
type consumerQueue struct {
	tasks []func() error
}

func (q *consumerQueue) enqueue(task func() error) {
	q.tasks = append(q.tasks, task)
}

// drain runs the queued tasks in order, stopping at the first error.
// A nil queue drains trivially.
func (q *consumerQueue) drain() error {
	if q == nil {
		return nil
	}
	for _, task := range q.tasks {
		if err := task(); err != nil {
			return err
		}
	}
	q.tasks = nil
	return nil
}
