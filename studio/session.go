package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
	StatusError  Status = "error"
)

// SwitchDecision is the author's answer when switching away from a dirty post.
type SwitchDecision int

const (
	DecisionNone SwitchDecision = iota
	DecisionDiscard
	DecisionCancel
)

var (
	ErrNoPostOpen      = errors.New("no post is open")
	ErrSaveInProgress  = errors.New("a save is already in progress")
	ErrUnsavedChanges  = errors.New("the open post has unsaved changes")
	ErrSwitchCancelled = errors.New("switch cancelled")
	ErrSessionClosed   = errors.New("session closed")
	ErrNotAcknowledged = errors.New("save was not acknowledged")
)

const (
	DefaultDebounce      = 1200 * time.Millisecond
	recoveryWriteTimeout = 2 * time.Second
)

// Opened is the result of opening a post. Recovery is set only when a local
// entry differs from what the server returned.
type Opened struct {
	Post     *Post
	Recovery *RecoveryEntry
}

type Option func(*Session)

func WithRecoveryStore(store RecoveryStore) Option {
	return func(s *Session) {
		s.recovery = store
	}
}

func WithDebounce(d time.Duration) Option {
	return func(s *Session) {
		s.debounce = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithStatusHook registers a callback for status changes. It runs on the
// session goroutine and must not call back into the session.
func WithStatusHook(hook func(Status)) Option {
	return func(s *Session) {
		s.hook = hook
	}
}

// Session holds the single authoritative draft of the open post. Editor
// changes arrive as messages and are applied in order by one goroutine,
// which also owns the recovery debounce timer.
type Session struct {
	api      PostAPI
	recovery RecoveryStore
	debounce time.Duration
	now      func() time.Time
	hook     func(Status)
	logger   zerolog.Logger

	cmds      chan func(*editorState)
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

type editorState struct {
	post    *Post
	saved   Draft
	current Draft
	status  Status
	timer   *time.Timer
	armed   bool
}

func (st *editorState) dirty() bool {
	return st.post != nil && st.current != st.saved
}

func NewSession(api PostAPI, opts ...Option) *Session {
	s := &Session{
		api:      api,
		recovery: NewMemoryRecoveryStore(),
		debounce: DefaultDebounce,
		now:      time.Now,
		logger:   log.With().Str("component", "studioSession").Logger(),
		cmds:     make(chan func(*editorState)),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

func (s *Session) run() {
	defer close(s.stopped)

	st := &editorState{status: StatusSaved}
	for {
		var flush <-chan time.Time
		if st.armed {
			flush = st.timer.C
		}

		select {
		case cmd := <-s.cmds:
			cmd(st)
		case <-flush:
			st.armed = false
			s.writeRecovery(st)
		case <-s.done:
			if st.armed {
				s.disarm(st)
				s.writeRecovery(st)
			}
			return
		}
	}
}

// send queues cmd behind every earlier message without waiting for it to run.
func (s *Session) send(cmd func(*editorState)) error {
	select {
	case s.cmds <- cmd:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// query runs fn on the session goroutine and waits for it.
func (s *Session) query(fn func(*editorState)) error {
	finished := make(chan struct{})
	if err := s.send(func(st *editorState) {
		fn(st)
		close(finished)
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-s.stopped:
		return ErrSessionClosed
	}
}

// Open loads a post into the session. It refuses while the open post has
// unsaved changes; use Switch or QuickSwitch for that.
func (s *Session) Open(ctx context.Context, postID uuid.UUID) (*Opened, error) {
	var dirty bool
	if err := s.query(func(st *editorState) { dirty = st.dirty() }); err != nil {
		return nil, err
	}
	if dirty {
		return nil, ErrUnsavedChanges
	}
	return s.open(ctx, postID)
}

func (s *Session) open(ctx context.Context, postID uuid.UUID) (*Opened, error) {
	post, err := s.api.Load(ctx, postID)
	if err != nil {
		return nil, err
	}
	saved := post.Draft()

	entry, err := s.recovery.Get(ctx, postID)
	if err != nil {
		s.logger.Warn().Err(err).Str("postID", postID.String()).Msg("failed to read recovery entry")
		entry = nil
	}
	if entry != nil && !entry.meaningful(saved) {
		if err := s.recovery.Delete(ctx, postID); err != nil {
			s.logger.Warn().Err(err).Str("postID", postID.String()).Msg("failed to drop stale recovery entry")
		}
		entry = nil
	}

	if err := s.query(func(st *editorState) {
		s.disarm(st)
		st.post = post
		st.saved = saved
		st.current = saved
		s.setStatus(st, StatusSaved)
	}); err != nil {
		return nil, err
	}
	return &Opened{Post: post, Recovery: entry}, nil
}

// Edit replaces the draft with the editor's full current value.
func (s *Session) Edit(draft Draft) error {
	return s.send(func(st *editorState) {
		if st.post == nil {
			return
		}
		st.current = draft
		s.reconcile(st)
	})
}

// Restore puts a recovery entry back into the editor. The post stays dirty
// until it is saved.
func (s *Session) Restore(entry RecoveryEntry) error {
	return s.Edit(entry.Draft)
}

// DiscardRecovery drops the local entry of the open post.
func (s *Session) DiscardRecovery(ctx context.Context) error {
	var postID uuid.UUID
	if err := s.query(func(st *editorState) {
		if st.post != nil {
			postID = st.post.ID
		}
	}); err != nil {
		return err
	}
	if postID == uuid.Nil {
		return ErrNoPostOpen
	}
	return s.recovery.Delete(ctx, postID)
}

func (s *Session) reconcile(st *editorState) {
	if st.status == StatusSaving {
		if st.dirty() {
			s.arm(st)
		}
		return
	}
	if !st.dirty() {
		s.disarm(st)
		s.setStatus(st, StatusSaved)
		return
	}
	s.setStatus(st, StatusIdle)
	s.arm(st)
}

// Save sends the current draft. On failure the draft stays dirty and the
// status becomes error. On success the recovery entry is purged, unless
// newer edits arrived during the save, in which case it is rewritten.
func (s *Session) Save(ctx context.Context) (*SaveResult, error) {
	var (
		postID   uuid.UUID
		draft    Draft
		startErr error
	)
	if err := s.query(func(st *editorState) {
		switch {
		case st.post == nil:
			startErr = ErrNoPostOpen
		case st.status == StatusSaving:
			startErr = ErrSaveInProgress
		default:
			postID = st.post.ID
			draft = st.current
			s.setStatus(st, StatusSaving)
		}
	}); err != nil {
		return nil, err
	}
	if startErr != nil {
		return nil, startErr
	}

	result, saveErr := s.api.Save(ctx, postID, draft)
	if saveErr == nil && (result == nil || !result.Success) {
		saveErr = ErrNotAcknowledged
	}

	if err := s.query(func(st *editorState) {
		if st.post == nil || st.post.ID != postID {
			return
		}
		if saveErr != nil {
			s.setStatus(st, StatusError)
			return
		}
		st.saved = draft
		if st.dirty() {
			// Edits made while the save was in flight still need a local copy.
			s.setStatus(st, StatusIdle)
			s.writeRecovery(st)
			return
		}
		s.disarm(st)
		s.setStatus(st, StatusSaved)
		s.purgeRecovery(postID)
	}); err != nil {
		return nil, err
	}

	if saveErr != nil {
		s.logger.Error().Err(saveErr).Str("postID", postID.String()).Msg("failed to save draft")
		return nil, saveErr
	}
	if result.Warning != "" {
		s.logger.Warn().Str("postID", postID.String()).Msg(result.Warning)
	}
	return result, nil
}

// Switch moves the session to another post. A dirty post needs an explicit
// decision: DecisionDiscard drops the unsaved draft, DecisionCancel stays.
func (s *Session) Switch(ctx context.Context, next uuid.UUID, decision SwitchDecision) (*Opened, error) {
	current, dirty, err := s.switchState(next)
	if err != nil || current != nil {
		return current, err
	}
	if dirty {
		switch decision {
		case DecisionDiscard:
		case DecisionCancel:
			return nil, ErrSwitchCancelled
		default:
			return nil, ErrUnsavedChanges
		}
	}
	return s.open(ctx, next)
}

// QuickSwitch saves a dirty post silently before switching and stays put if
// that save fails.
func (s *Session) QuickSwitch(ctx context.Context, next uuid.UUID) (*Opened, error) {
	current, dirty, err := s.switchState(next)
	if err != nil || current != nil {
		return current, err
	}
	if dirty {
		if _, err := s.Save(ctx); err != nil {
			return nil, fmt.Errorf("quick switch aborted: %w", err)
		}
	}
	return s.open(ctx, next)
}

// switchState returns the open post when next is already open.
func (s *Session) switchState(next uuid.UUID) (*Opened, bool, error) {
	var (
		current *Opened
		dirty   bool
		saving  bool
	)
	if err := s.query(func(st *editorState) {
		saving = st.status == StatusSaving
		dirty = st.dirty()
		if st.post != nil && st.post.ID == next {
			current = &Opened{Post: st.post}
		}
	}); err != nil {
		return nil, false, err
	}
	if saving {
		return nil, false, ErrSaveInProgress
	}
	return current, dirty, nil
}

func (s *Session) Status() Status {
	status := StatusSaved
	_ = s.query(func(st *editorState) { status = st.status })
	return status
}

func (s *Session) Dirty() bool {
	var dirty bool
	_ = s.query(func(st *editorState) { dirty = st.dirty() })
	return dirty
}

// Current returns the authoritative draft.
func (s *Session) Current() Draft {
	var draft Draft
	_ = s.query(func(st *editorState) { draft = st.current })
	return draft
}

// ConfirmLeave reports whether closing the editor now would lose unsaved
// work and therefore needs the author's confirmation.
func (s *Session) ConfirmLeave() bool {
	return s.Dirty()
}

// Close stops the session, writing a pending recovery entry first.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	<-s.stopped
}

func (s *Session) setStatus(st *editorState, status Status) {
	if st.status == status {
		return
	}
	st.status = status
	if s.hook != nil {
		s.hook(status)
	}
}

func (s *Session) arm(st *editorState) {
	if st.timer == nil {
		st.timer = time.NewTimer(s.debounce)
	} else {
		st.timer.Reset(s.debounce)
	}
	st.armed = true
}

func (s *Session) disarm(st *editorState) {
	if st.timer != nil {
		st.timer.Stop()
	}
	st.armed = false
}

func (s *Session) writeRecovery(st *editorState) {
	if !st.dirty() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recoveryWriteTimeout)
	defer cancel()

	entry := RecoveryEntry{Draft: st.current, SavedAt: s.now().UTC()}
	if err := s.recovery.Set(ctx, st.post.ID, entry); err != nil {
		s.logger.Warn().Err(err).Str("postID", st.post.ID.String()).Msg("failed to write recovery entry")
	}
}

func (s *Session) purgeRecovery(postID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), recoveryWriteTimeout)
	defer cancel()

	if err := s.recovery.Delete(ctx, postID); err != nil {
		s.logger.Warn().Err(err).Str("postID", postID.String()).Msg("failed to purge recovery entry")
	}
}
