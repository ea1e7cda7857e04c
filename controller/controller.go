// Package controller binds gallery UI intents to a photo library.
//
// Capture and confirmed deletes are fire-and-forget: they run on the
// controller's own lifetime and report failures to the log only. Callers
// observe the outcome through the library's index.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mhbvr/shutter"
	"k8s.io/klog/v2"
)

// Library is the part of a photo library the controller drives. It is
// satisfied by *library.Library and by the remote rpc.Client.
type Library interface {
	Load(ctx context.Context) error
	Capture(ctx context.Context) (shutter.Record, error)
	Delete(ctx context.Context, rec shutter.Record, position int) error
	Snapshot() []shutter.Record
}

var (
	// ErrNoPrompt is returned by Choose when no prompt is shown.
	ErrNoPrompt = errors.New("no prompt shown")

	// ErrUnknownOption is returned by Choose for an option the prompt does not offer.
	ErrUnknownOption = errors.New("unknown prompt option")

	// ErrClosed is returned once the controller has been closed.
	ErrClosed = errors.New("controller closed")
)

// Controller owns the gallery's interaction state.
type Controller struct {
	lib Library

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	prompt *Prompt
	closed bool
}

// New creates a controller driving lib.
func New(lib Library) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		lib:    lib,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Activate loads the saved index and returns once it is in memory.
func (c *Controller) Activate(ctx context.Context) error {
	if err := c.ctx.Err(); err != nil {
		return ErrClosed
	}
	if err := c.lib.Load(ctx); err != nil {
		return fmt.Errorf("failed to load photos: %w", err)
	}
	return nil
}

// Photos returns the library's current index.
func (c *Controller) Photos() []shutter.Record {
	return c.lib.Snapshot()
}

// Capture starts a capture and returns immediately.
func (c *Controller) Capture() {
	c.spawn("capture", func(ctx context.Context) error {
		rec, err := c.lib.Capture(ctx)
		if err == nil {
			klog.V(1).InfoS("capture finished", "file", rec.FilePath)
		}
		return err
	})
}

// RequestDelete shows the delete confirmation for the record at position,
// replacing any prompt already shown.
func (c *Controller) RequestDelete(rec shutter.Record, position int) Prompt {
	p := newDeletePrompt(rec, position)

	c.mu.Lock()
	c.prompt = &p
	c.mu.Unlock()

	return p
}

// Prompt returns the prompt currently shown, if any.
func (c *Controller) Prompt() (Prompt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prompt == nil {
		return Prompt{}, false
	}
	return *c.prompt, true
}

// Choose handles a selection on the shown prompt and dismisses it. Choosing
// Delete starts the delete in the background.
func (c *Controller) Choose(option string) error {
	c.mu.Lock()
	p := c.prompt
	if p == nil {
		c.mu.Unlock()
		return ErrNoPrompt
	}
	if _, ok := p.Option(option); !ok {
		c.mu.Unlock()
		return fmt.Errorf("%q: %w", option, ErrUnknownOption)
	}
	c.prompt = nil
	c.mu.Unlock()

	switch option {
	case OptionDelete:
		rec, position := p.Record, p.Position
		c.spawn("delete", func(ctx context.Context) error {
			return c.lib.Delete(ctx, rec, position)
		})
	case OptionCancel:
		klog.V(1).InfoS("delete cancelled", "file", p.Record.FilePath)
	}
	return nil
}

// Wait blocks until every background operation started so far has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels background operations and waits for them to return.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

// spawn runs fn in the background unless the controller is closed.
// c.mu orders every wg.Go before the Wait in Close.
func (c *Controller) spawn(op string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		klog.InfoS("controller closed, dropping operation", "op", op)
		return
	}
	c.wg.Go(func() {
		if err := fn(c.ctx); err != nil {
			klog.ErrorS(err, "background operation failed", "op", op)
		}
	})
}
