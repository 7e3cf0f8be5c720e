package scanhook

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/saltyorg/easierlife/internal/config"
	"github.com/saltyorg/easierlife/internal/events"
	"github.com/saltyorg/easierlife/internal/library"
)

const subscriptionBuffer = 256

// ErrAlreadyStarted is returned by Start on a running interceptor
var ErrAlreadyStarted = errors.New("scan hook already started")

// Subscriber is the part of the event bus the interceptor needs
type Subscriber interface {
	SubscribeAll(bufferSize int) <-chan events.ItemEvent
	Unsubscribe(ch <-chan events.ItemEvent)
}

// Replacer runs a forced metadata replacement for one item
type Replacer interface {
	ReplaceMetadata(ctx context.Context, item *library.Item, replaceImages bool) error
}

// Interceptor listens for item events and replaces metadata when the policy says so
type Interceptor struct {
	bus      Subscriber
	settings config.HookSource
	items    library.Repository
	replacer Replacer
	timeout  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	ch      <-chan events.ItemEvent
	cancel  context.CancelFunc
	group   *errgroup.Group
	loop    chan struct{}
	cooling map[string]time.Time
}

// New creates an interceptor. items resolves events that only carry an item id.
func New(bus Subscriber, settings config.HookSource, items library.Repository, replacer Replacer) *Interceptor {
	return &Interceptor{
		bus:      bus,
		settings: settings,
		items:    items,
		replacer: replacer,
		timeout:  config.GetTimeouts().Refresh,
		now:      time.Now,
		cooling:  make(map[string]time.Time),
	}
}

// Name returns the handler name
func (i *Interceptor) Name() string {
	return "scan-hook"
}

// Start subscribes to the bus and processes events in the background until Stop or ctx is done
func (i *Interceptor) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ch != nil {
		return ErrAlreadyStarted
	}

	hook := i.settings.Hook()
	group := new(errgroup.Group)
	group.SetLimit(hook.MaxConcurrent)

	runCtx, cancel := context.WithCancel(ctx)
	i.ch = i.bus.SubscribeAll(subscriptionBuffer)
	i.cancel = cancel
	i.group = group
	i.loop = make(chan struct{})

	go i.run(runCtx, i.ch, group, i.loop)

	log.Info().
		Str("mode", ModeFor(i.settings.Plugin()).String()).
		Int("max_concurrent", hook.MaxConcurrent).
		Msg("Scan hook started")
	return nil
}

// Run starts the interceptor and blocks until ctx is done
func (i *Interceptor) Run(ctx context.Context) error {
	if err := i.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	i.Stop()
	return nil
}

// Stop unsubscribes from the bus and waits for in-flight replacements
func (i *Interceptor) Stop() {
	i.mu.Lock()
	ch, cancel, group, loop := i.ch, i.cancel, i.group, i.loop
	i.ch, i.cancel, i.group, i.loop = nil, nil, nil, nil
	i.mu.Unlock()

	if ch == nil {
		return
	}

	i.bus.Unsubscribe(ch)
	<-loop
	_ = group.Wait()
	cancel()
	log.Info().Msg("Scan hook stopped")
}

func (i *Interceptor) run(ctx context.Context, ch <-chan events.ItemEvent, group *errgroup.Group, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			i.dispatch(ctx, group, e)
		}
	}
}

// dispatch evaluates the policy for one event and schedules the replacement
func (i *Interceptor) dispatch(ctx context.Context, group *errgroup.Group, e events.ItemEvent) {
	plugin := i.settings.Plugin()
	hook := i.settings.Hook()
	policy := PolicyFor(plugin, hook)

	if !policy.ShouldReplace(e) {
		log.Trace().
			Str("type", string(e.Type)).
			Str("item_id", e.ItemID).
			Str("reason", string(e.Reason)).
			Str("mode", policy.Mode.String()).
			Msg("Event ignored by policy")
		return
	}

	key := cooldownKey(e)
	claimedAt, ok := i.claim(key, hook.Cooldown)
	if !ok {
		log.Debug().
			Str("type", string(e.Type)).
			Str("item_id", e.ItemID).
			Msg("Item replaced recently, skipping")
		return
	}

	replaceImages := plugin.ReplaceImages
	group.Go(func() error {
		if !i.handle(ctx, e, replaceImages) {
			i.release(key, claimedAt)
		}
		return nil
	})
}

// cooldownKey scopes the cooldown to one item and event type, so an update following an addition still triggers
func cooldownKey(e events.ItemEvent) string {
	return string(e.Type) + ":" + e.ItemID
}

// handle runs one replacement and reports whether it succeeded. Nothing escapes this function.
func (i *Interceptor) handle(ctx context.Context, e events.ItemEvent, replaceImages bool) (succeeded bool) {
	defer func() {
		if r := recover(); r != nil {
			succeeded = false
			log.Error().
				Str("item_id", e.ItemID).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("Scan hook task panicked")
		}
	}()

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	item := e.Item
	if item == nil {
		resolved, err := i.items.GetItem(ctx, e.ItemID)
		if err != nil {
			if errors.Is(err, library.ErrItemNotFound) {
				log.Debug().Str("item_id", e.ItemID).Msg("Event item no longer exists")
			} else {
				log.Error().Err(err).Str("item_id", e.ItemID).Msg("Failed to resolve event item")
			}
			return false
		}
		item = resolved
	}

	log.Debug().
		Str("type", string(e.Type)).
		Str("item", item.Name).
		Str("reason", string(e.Reason)).
		Msg("Triggering metadata replacement")

	if err := i.replacer.ReplaceMetadata(ctx, item, replaceImages); err != nil {
		log.Error().Err(err).Str("item", item.Name).Str("type", string(e.Type)).Msg("Scan hook replacement failed")
		return false
	}
	return true
}

// claim marks a key as replaced now. It returns false while the key is still cooling down.
func (i *Interceptor) claim(key string, cooldown time.Duration) (time.Time, bool) {
	now := i.now()
	if cooldown <= 0 {
		return now, true
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if last, ok := i.cooling[key]; ok && now.Sub(last) < cooldown {
		return time.Time{}, false
	}
	i.cooling[key] = now

	if len(i.cooling) > 1024 {
		for id, at := range i.cooling {
			if now.Sub(at) >= cooldown {
				delete(i.cooling, id)
			}
		}
	}
	return now, true
}

// release drops a claim taken at claimedAt so a failed replacement can be retried.
// A newer claim for the same key is left alone.
func (i *Interceptor) release(key string, claimedAt time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if at, ok := i.cooling[key]; ok && at.Equal(claimedAt) {
		delete(i.cooling, key)
	}
}
