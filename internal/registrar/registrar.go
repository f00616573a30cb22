// Package registrar ties the removal of cleanup locks to the lifetime of the
// process that owns them.
//
// A Registrar is constructed once per process with an explicit identity token
// and passed to whoever needs to register lock removal. It never hooks process
// exit itself: RegisterCleanup builds the removal action and hands it to a
// caller-supplied register function. The convenience Register method uses the
// Registrar's own exit list, which the process drains with RunAll when it
// shuts down.
//
// # Fork Safety
//
// Every action remembers the token that was current when it was registered.
// Invoked with an origin token that differs, the action does nothing. A
// duplicated process context (a child that inherited the parent's exit list)
// passes its own token and therefore cannot release the parent's locks.
//
//	reg := registrar.New(registrar.CurrentToken(), logger)
//	h, _ := cleanuplock.Create(dir)
//	reg.Register(h)
//	defer reg.RunAll(registrar.CurrentToken())
package registrar

import (
	"os"
	"slices"
	"strconv"
	"sync"

	"github.com/Iron-Ham/basetemp/internal/cleanuplock"
	"github.com/Iron-Ham/basetemp/internal/logging"
)

// Token identifies the process context that owns a registration.
type Token string

// NoOrigin invokes a CleanupFunc unconditionally.
const NoOrigin Token = ""

// CurrentToken returns the token for the running process, derived from its
// PID.
func CurrentToken() Token {
	return Token(strconv.Itoa(os.Getpid()))
}

// CleanupFunc removes a registered lock marker. Passing NoOrigin, or the
// token captured at registration, removes the marker; any other origin is a
// no-op. It is idempotent and never fails.
type CleanupFunc func(origin Token)

// Entry is the bookkeeping record of one registration.
type Entry struct {
	LockPath string
	Token    Token
}

// Registrar records lock registrations for one process. It is safe for
// concurrent use.
type Registrar struct {
	identity Token
	logger   *logging.Logger

	mu      sync.Mutex
	entries []Entry
	atExit  []CleanupFunc
}

// New creates a Registrar whose registrations capture identity. logger may
// be nil.
func New(identity Token, logger *logging.Logger) *Registrar {
	return &Registrar{
		identity: identity,
		logger:   logger,
	}
}

// Identity returns the token captured by registrations made through r.
func (r *Registrar) Identity() Token {
	return r.identity
}

// RegisterCleanup builds the removal action for h, passes it to register and
// returns it. register is where the caller arranges for the action to run,
// typically at process exit. A nil h records nothing and yields a no-op.
func (r *Registrar) RegisterCleanup(h *cleanuplock.Handle, register func(CleanupFunc)) CleanupFunc {
	if h == nil {
		r.logger.Warn("cleanup registration skipped for nil lock handle")
		return func(Token) {}
	}
	token := r.identity
	log := r.logger.WithDir(h.Dir)

	fn := func(origin Token) {
		if origin != NoOrigin && origin != token {
			log.Debug("skipping lock removal for foreign origin",
				"origin", string(origin),
				"owner", string(token),
			)
			return
		}
		if err := cleanuplock.Release(h); err != nil {
			log.Warn("failed to remove cleanup lock", "lock", h.Path, "error", err.Error())
			return
		}
		log.Debug("cleanup lock removed", "lock", h.Path)
	}

	r.mu.Lock()
	r.entries = append(r.entries, Entry{LockPath: h.Path, Token: token})
	r.mu.Unlock()

	if register != nil {
		register(fn)
	}
	return fn
}

// Register registers h's removal on r's own exit list.
func (r *Registrar) Register(h *cleanuplock.Handle) CleanupFunc {
	return r.RegisterCleanup(h, r.AtExit)
}

// AtExit queues fn to be run by RunAll.
func (r *Registrar) AtExit(fn CleanupFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.atExit = append(r.atExit, fn)
}

// RunAll runs every queued action with origin, most recent first, and clears
// the queue. Calling it again is harmless.
func (r *Registrar) RunAll(origin Token) {
	r.mu.Lock()
	fns := r.atExit
	r.atExit = nil
	r.mu.Unlock()

	for _, fn := range slices.Backward(fns) {
		fn(origin)
	}
}

// Entries returns a snapshot of every registration made through r.
func (r *Registrar) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

// Pending returns how many actions are queued for RunAll.
func (r *Registrar) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.atExit)
}
