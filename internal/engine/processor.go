package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/narrative-engine/internal/logger"
	"github.com/jwebster45206/narrative-engine/internal/services"
	"github.com/jwebster45206/narrative-engine/pkg/chat"
	"github.com/jwebster45206/narrative-engine/pkg/directive"
	"github.com/jwebster45206/narrative-engine/pkg/storage"
	"github.com/jwebster45206/narrative-engine/pkg/world"
)

var (
	// ErrNotFound is returned when no session exists under the given ID.
	ErrNotFound = errors.New("session not found")

	// ErrBusy is returned when a message arrives while a previous turn
	// for the same session is still being applied. The caller should
	// retry; the in-flight turn is never interleaved with.
	ErrBusy = errors.New("session is processing another turn")
)

// Options are the engine's recognized configuration flags.
type Options struct {
	AutoGenerateChoices bool
	NumChoices          int
	EnableTimeTracking  bool
	TimeProgressionRate int // minutes added per applied assistant turn
}

// session pairs a world state with the lock that serializes its turns.
type session struct {
	mu    sync.Mutex
	state *world.State
}

// Processor owns all live sessions and applies narrative turns to them.
// The in-memory state is authoritative; the storage adapter is a
// write-through copy and a source for restoring sessions after restart.
type Processor struct {
	storage   storage.Storage
	generator services.ChoiceGenerator // may be nil
	parser    *directive.Parser
	logger    *slog.Logger
	opts      Options

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// NewProcessor creates a turn processor. generator may be nil, in which
// case no choices are ever generated.
func NewProcessor(store storage.Storage, generator services.ChoiceGenerator, opts Options, logger *slog.Logger) *Processor {
	return &Processor{
		storage:   store,
		generator: generator,
		parser:    directive.NewParser(logger),
		logger:    logger,
		opts:      opts,
		sessions:  make(map[uuid.UUID]*session),
	}
}

// CreateSession starts a new session with fresh world defaults.
func (p *Processor) CreateSession(ctx context.Context) *world.State {
	st := world.NewState()

	p.mu.Lock()
	p.sessions[st.ID] = &session{state: st}
	p.mu.Unlock()

	p.persist(ctx, st)
	return st.Clone()
}

// GetState returns a detached copy of the current world state for a
// session. The copy is taken under the session lock so a read can
// never observe a half-applied turn; callers may encode it freely.
func (p *Processor) GetState(ctx context.Context, id uuid.UUID) (*world.State, error) {
	sess, err := p.session(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state.Clone(), nil
}

// Snapshot returns the derived read-only view of a session's world.
func (p *Processor) Snapshot(ctx context.Context, id uuid.UUID) (world.Snapshot, error) {
	sess, err := p.session(ctx, id)
	if err != nil {
		return world.Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state.Snapshot(), nil
}

// DeleteSession removes a session from memory and storage.
func (p *Processor) DeleteSession(ctx context.Context, id uuid.UUID) error {
	p.mu.Lock()
	delete(p.sessions, id)
	p.mu.Unlock()

	if err := p.storage.DeleteState(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// HandleMessage processes one inbound narrative message. Only
// assistant text mutates state; other roles pass through unchanged.
// A second message for the same session arriving mid-turn is rejected
// with ErrBusy rather than interleaved.
func (p *Processor) HandleMessage(ctx context.Context, id uuid.UUID, role, text string) (*chat.MessageResponse, error) {
	sess, err := p.session(ctx, id)
	if err != nil {
		return nil, err
	}

	if role != chat.RoleAssistant {
		sess.mu.Lock()
		snap := sess.state.Snapshot()
		sess.mu.Unlock()
		return &chat.MessageResponse{
			SessionID: id.String(),
			Text:      text,
			Snapshot:  snap,
		}, nil
	}

	log := logger.WithSession(p.logger, id.String())

	if !sess.mu.TryLock() {
		log.Warn("Dropping message for busy session")
		return nil, ErrBusy
	}
	defer sess.mu.Unlock()

	updates := p.parser.ExtractUpdates(text)
	for _, u := range updates {
		sess.state.ApplyUpdate(u)
	}
	if len(updates) > 0 {
		log.Debug("Applied update directives", "count", len(updates))
	}

	if p.opts.EnableTimeTracking {
		sess.state.AdvanceTime(p.opts.TimeProgressionRate)
	}

	// Persist once, after the whole batch.
	p.persist(ctx, sess.state)

	resp := &chat.MessageResponse{
		SessionID: id.String(),
		Text:      p.parser.Strip(text),
		Choices:   p.parser.ExtractChoices(text),
		Snapshot:  sess.state.Snapshot(),
	}

	// Generated choices supplement the turn only when the narrative
	// didn't embed its own.
	if p.opts.AutoGenerateChoices && len(resp.Choices) == 0 {
		resp.Generated = p.generateChoices(ctx, resp.Snapshot)
	}

	return resp, nil
}

// GenerateChoices produces action candidates on demand. A failed or
// absent generator yields an empty slice, never an error.
func (p *Processor) GenerateChoices(ctx context.Context, id uuid.UUID) ([]chat.Choice, error) {
	sess, err := p.session(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	snap := sess.state.Snapshot()
	sess.mu.Unlock()
	return p.generateChoices(ctx, snap), nil
}

func (p *Processor) generateChoices(ctx context.Context, snap world.Snapshot) []chat.Choice {
	if p.generator == nil {
		return nil
	}
	choices, err := p.generator.GenerateChoices(ctx, snap, p.opts.NumChoices)
	if err != nil {
		p.logger.Warn("Choice generation failed", "error", err)
		return nil
	}
	return choices
}

// AddItem adds an item through the explicit command surface.
func (p *Processor) AddItem(ctx context.Context, id uuid.UUID, name string, quantity int, description string) (*world.State, error) {
	return p.mutate(ctx, id, func(st *world.State) {
		st.AddItem(name, quantity, description)
	})
}

// RemoveItem removes quantity of an item; removing an unheld item is a no-op.
func (p *Processor) RemoveItem(ctx context.Context, id uuid.UUID, name string, quantity int) (*world.State, error) {
	return p.mutate(ctx, id, func(st *world.State) {
		st.RemoveItem(name, quantity)
	})
}

// UpdateRelationship adjusts standing with a character.
func (p *Processor) UpdateRelationship(ctx context.Context, id uuid.UUID, name, category string, affectionDelta int) (*world.State, error) {
	return p.mutate(ctx, id, func(st *world.State) {
		st.UpdateRelationship(name, category, affectionDelta)
	})
}

// SetLocation moves the player, optionally updating the region.
func (p *Processor) SetLocation(ctx context.Context, id uuid.UUID, name, region string) (*world.State, error) {
	return p.mutate(ctx, id, func(st *world.State) {
		st.SetLocation(name, region)
	})
}

// AdvanceTime moves the world clock forward. The whole operation is a
// no-op when time tracking is disabled by configuration.
func (p *Processor) AdvanceTime(ctx context.Context, id uuid.UUID, minutes int) (*world.State, error) {
	if !p.opts.EnableTimeTracking {
		return p.GetState(ctx, id)
	}
	return p.mutate(ctx, id, func(st *world.State) {
		st.AdvanceTime(minutes)
	})
}

// Reset replaces the session's world with fresh defaults.
func (p *Processor) Reset(ctx context.Context, id uuid.UUID) (*world.State, error) {
	return p.mutate(ctx, id, func(st *world.State) {
		st.Reset()
	})
}

// Export serializes the session's full state as a save blob.
func (p *Processor) Export(ctx context.Context, id uuid.UUID) ([]byte, error) {
	sess, err := p.session(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state.Export()
}

// Import replaces the session's state wholesale from a save blob. On a
// malformed blob the error wraps world.ErrDeserialization and the
// current state is left untouched.
func (p *Processor) Import(ctx context.Context, id uuid.UUID, blob []byte) (*world.State, error) {
	sess, err := p.session(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	imported, err := world.ImportState(blob)
	if err != nil {
		return nil, err
	}
	// The save keeps its own history but lives under this session.
	imported.ID = id
	sess.state = imported

	p.persist(ctx, sess.state)
	return sess.state.Clone(), nil
}

// session returns the live session, restoring it from storage when the
// process has no in-memory copy yet.
func (p *Processor) session(ctx context.Context, id uuid.UUID) (*session, error) {
	p.mu.Lock()
	if sess, ok := p.sessions[id]; ok {
		p.mu.Unlock()
		return sess, nil
	}
	p.mu.Unlock()

	st, err := p.storage.LoadState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	if st == nil {
		return nil, ErrNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Another caller may have restored it in the meantime.
	if sess, ok := p.sessions[id]; ok {
		return sess, nil
	}
	sess := &session{state: st}
	p.sessions[id] = sess
	return sess, nil
}

// mutate runs a state mutation under the session lock, persists the
// result and returns a detached copy for the caller to render.
func (p *Processor) mutate(ctx context.Context, id uuid.UUID, fn func(st *world.State)) (*world.State, error) {
	sess, err := p.session(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	fn(sess.state)
	p.persist(ctx, sess.state)
	return sess.state.Clone(), nil
}

// persist stamps the state and writes it through to storage. Failures
// are logged and swallowed: the in-memory state stays authoritative
// for the session.
func (p *Processor) persist(ctx context.Context, st *world.State) {
	st.UpdatedAt = time.Now()
	if err := p.storage.SaveState(ctx, st.ID, st); err != nil {
		p.logger.Warn("Failed to persist world state, continuing with in-memory copy",
			"session_id", st.ID, "error", err)
	}
}
