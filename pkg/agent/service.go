package agent

import (
	"context"
	"fmt"
	"sync"

	"warden/pkg/command"
	wardenerrors "warden/pkg/errors"
	"warden/pkg/executor"
	"warden/pkg/logging"
	"warden/pkg/memory"
	"warden/pkg/model"
	"warden/pkg/notify"
	"warden/pkg/permission"
	"warden/pkg/storage"
	"warden/pkg/stream"
	"warden/pkg/telemetry"
	"warden/pkg/workspace"
)

// Response is the outcome of one processed message.
type Response struct {
	Text            string
	Status          stream.Status
	Trigger         stream.Trigger
	TruncatedMidTag bool
	Records         []executor.Record
	TokensUsed      int
}

// session tracks one agent's in-flight stream. Cancelled is consulted
// before every chunk; once set, remaining chunks are dropped but the
// accumulated buffer is kept for task execution.
type session struct {
	mu        sync.Mutex
	cancelled bool
}

func (s *session) cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *session) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Service is the per-process registry and pipeline for all agents. It
// owns the agent-keyed memory and active-stream maps explicitly;
// construction happens at service start and Flush at shutdown.
type Service struct {
	provider model.Provider
	monitor  *stream.Monitor
	scanner  *command.Scanner
	exec     *executor.Executor
	manager  *memory.Manager
	store    *storage.Store
	ws       *workspace.Workspace
	notifier notify.Notifier
	logger   *logging.Logger
	modelCfg model.Config

	mu       sync.Mutex
	memories map[string]*memory.Record
	active   map[string]*session
	perms    map[string]permission.Set
}

// Options bundles the collaborators a Service needs.
type Options struct {
	Provider  model.Provider
	Monitor   *stream.Monitor
	Scanner   *command.Scanner
	Executor  *executor.Executor
	Manager   *memory.Manager
	Store     *storage.Store
	Workspace *workspace.Workspace
	Notifier  notify.Notifier
	Logger    *logging.Logger
	ModelCfg  model.Config
}

// NewService builds the agent registry.
func NewService(opts Options) *Service {
	return &Service{
		provider: opts.Provider,
		monitor:  opts.Monitor,
		scanner:  opts.Scanner,
		exec:     opts.Executor,
		manager:  opts.Manager,
		store:    opts.Store,
		ws:       opts.Workspace,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		modelCfg: opts.ModelCfg,
		memories: make(map[string]*memory.Record),
		active:   make(map[string]*session),
		perms:    make(map[string]permission.Set),
	}
}

// SetPermissions replaces an agent's permission set. Takes effect on
// the next invocation; the guard re-reads the set before every task.
func (s *Service) SetPermissions(agentID string, set permission.Set) {
	s.mu.Lock()
	s.perms[agentID] = set
	s.mu.Unlock()
}

// Permissions returns the agent's current permission set, which may be
// empty (default-deny).
func (s *Service) Permissions(agentID string) permission.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perms[agentID]
}

// Cancel flags the agent's in-flight stream, if any. Chunks arriving
// after the flag are dropped; the buffer accumulated so far still goes
// through scanning and execution.
func (s *Service) Cancel(agentID string) bool {
	s.mu.Lock()
	sess := s.active[agentID]
	s.mu.Unlock()
	if sess == nil {
		return false
	}
	sess.cancel()
	return true
}

// acquire registers an in-flight session for the agent, rejecting
// reentrant calls outright rather than queueing them.
func (s *Service) acquire(agentID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[agentID]; busy {
		return nil, wardenerrors.New(wardenerrors.ErrCodeReentrancy,
			fmt.Sprintf("agent %s already has a response in flight", agentID))
	}
	sess := &session{}
	s.active[agentID] = sess
	return sess, nil
}

func (s *Service) release(agentID string) {
	s.mu.Lock()
	delete(s.active, agentID)
	s.mu.Unlock()
}

// Memory returns a copy of the agent's memory record, loading it from
// storage on first use and creating it lazily for new agents. Callers
// get a snapshot, never the live record: an in-flight ProcessMessage
// may be appending turns concurrently.
func (s *Service) Memory(ctx context.Context, agentID string) (*memory.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.memoryLocked(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (s *Service) memoryLocked(ctx context.Context, agentID string) (*memory.Record, error) {
	if rec, ok := s.memories[agentID]; ok {
		return rec, nil
	}
	if s.store != nil {
		encoded, found, err := s.store.LoadMemory(ctx, agentID)
		if err != nil {
			return nil, err
		}
		if found {
			rec, err := memory.UnmarshalRecord(encoded)
			if err == nil {
				s.memories[agentID] = rec
				return rec, nil
			}
			s.logger.Warn(logging.CategorySession, "memory_corrupt", agentID, "stored memory unreadable, starting fresh", map[string]any{"error": err.Error()})
		}
	}
	rec := memory.NewRecord()
	s.memories[agentID] = rec
	return rec, nil
}

// ClearMemory drops the agent's record from the registry and storage.
func (s *Service) ClearMemory(ctx context.Context, agentID string) error {
	s.mu.Lock()
	delete(s.memories, agentID)
	s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	return s.store.DeleteMemory(ctx, agentID)
}

// ProcessMessage runs the full pipeline for one user message: build
// bounded history, stream the model response through the safety
// monitor, then scan and execute whatever the response contained. The
// in-flight lock is released on every exit path.
func (s *Service) ProcessMessage(ctx context.Context, agentID, userMessage string) (*Response, error) {
	sess, err := s.acquire(agentID)
	if err != nil {
		telemetry.RecordReentrancyRejection()
		s.logger.Warn(logging.CategorySession, "reentrancy_rejected", agentID, "concurrent request rejected", nil)
		return nil, err
	}
	defer s.release(agentID)

	if s.ws == nil {
		s.notifier.Error(ctx, agentID, "No workspace folder open")
		return nil, workspace.ErrNoWorkspace
	}

	// Record the user turn and build the bounded history in one locked
	// section. Flush and Memory snapshots take the same lock, so the
	// record is never read while a turn is being appended.
	s.mu.Lock()
	rec, err := s.memoryLocked(ctx, agentID)
	if err != nil {
		s.mu.Unlock()
		return nil, wardenerrors.Wrap(err, wardenerrors.ErrCodeStorage, "loading agent memory")
	}
	rec.AppendTurn(model.RoleUser, userMessage)
	s.manager.EnsureBudget(agentID, rec)
	messages := make([]model.Message, 0, 8)
	messages = append(messages, model.Message{Role: model.RoleSystem, Content: command.Instructions()})
	messages = append(messages, s.manager.BuildHistory(rec)...)
	s.mu.Unlock()

	state := s.monitor.NewState()
	err = s.provider.GenerateStreaming(ctx, messages, s.modelCfg, func(chunk model.Chunk) error {
		if sess.isCancelled() {
			return errStreamDone
		}
		if chunk.Done {
			s.monitor.Complete(agentID, state)
			return nil
		}
		if s.monitor.Feed(agentID, state, chunk.Content) != stream.StatusStreaming {
			return errStreamDone
		}
		return nil
	})
	if err != nil && err != errStreamDone {
		// Provider failures abort the whole response with one
		// apologetic message; locks are released by the deferred call.
		s.notifier.Error(ctx, agentID, "Sorry, something went wrong while generating a response. Please try again.")
		s.logger.Error(logging.CategorySession, "provider_failed", agentID, "provider error", map[string]any{"error": err.Error()})
		return nil, wardenerrors.Wrap(err, wardenerrors.ErrCodeProvider, "generating response")
	}
	if state.Status() == stream.StatusStreaming {
		// Cancelled or the provider returned without a done signal.
		s.monitor.Complete(agentID, state)
	}

	text := state.Text()
	scanned := s.scanner.Scan(text)
	if scanned.Truncated {
		s.logger.Warn(logging.CategoryScanner, "possible_truncation", agentID, "unterminated command tags in response", map[string]any{
			"kinds": scanned.TruncatedKinds,
		})
	}
	for _, note := range scanned.Notes {
		s.notifier.Operator(ctx, agentID, note)
	}

	records := s.exec.Execute(ctx, agentID, s.Permissions(agentID), scanned.Invocations)
	for _, r := range records {
		s.notifier.Info(ctx, agentID, r.Result)
	}

	s.mu.Lock()
	rec.AppendTurn(model.RoleAssistant, text)
	s.mu.Unlock()
	s.persistAsync(agentID, rec)

	return &Response{
		Text:            text,
		Status:          state.Status(),
		Trigger:         state.Trigger(),
		TruncatedMidTag: state.TruncatedMidTag,
		Records:         records,
		TokensUsed:      memory.CountTokens(text),
	}, nil
}

// errStreamDone tells the provider to stop sending; it is not a
// failure.
var errStreamDone = wardenerrors.New(wardenerrors.ErrCodeRunawayResponse, "stream stopped by monitor")

// persistAsync snapshots the record synchronously under the registry
// lock, then writes it in a detached goroutine. Execution never waits
// on persistence; a failed write is logged and nothing more.
func (s *Service) persistAsync(agentID string, rec *memory.Record) {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	encoded, err := rec.Marshal()
	s.mu.Unlock()
	if err != nil {
		s.logger.Error(logging.CategoryStorage, "memory_marshal_failed", agentID, "could not encode memory record", map[string]any{"error": err.Error()})
		return
	}
	go func() {
		if err := s.store.SaveMemory(context.Background(), agentID, encoded); err != nil {
			s.logger.Error(logging.CategoryStorage, "memory_persist_failed", agentID, "could not persist memory record", map[string]any{"error": err.Error()})
		}
	}()
}

// Flush synchronously persists every in-registry memory record. Called
// at shutdown.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	snapshot := make(map[string]string, len(s.memories))
	for agentID, rec := range s.memories {
		encoded, err := rec.Marshal()
		if err != nil {
			s.logger.Error(logging.CategoryStorage, "memory_marshal_failed", agentID, "could not encode memory record", map[string]any{"error": err.Error()})
			continue
		}
		snapshot[agentID] = encoded
	}
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	var firstErr error
	for agentID, encoded := range snapshot {
		if err := s.store.SaveMemory(ctx, agentID, encoded); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
