// Package session coordinates one open page's source of truth. A Session
// owns the authoritative local source string, debounces outbound saves,
// polls the store for external changes, and arbitrates conflicts with
// version counters and a post-save grace window. Parsing, diffing and
// mutation application stay pure; everything stateful about
// synchronization lives here.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/quire-dev/quire/internal/adapter"
	"github.com/quire-dev/quire/internal/markup"
	"github.com/quire-dev/quire/internal/model"
)

// State is the lifecycle phase of a session.
type State int

const (
	// StateIdle is a constructed session before Load.
	StateIdle State = iota
	// StateFetching is the initial load in flight.
	StateFetching
	// StateSynced is normal operation: local content tracked against the
	// store, clean or dirty.
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateSynced:
		return "synced"
	default:
		return "unknown"
	}
}

// Defaults for Config fields left zero.
const (
	DefaultDebounce = 750 * time.Millisecond
	DefaultPoll     = 3 * time.Second
	DefaultGrace    = 2 * time.Second
)

// Config tunes one session. Zero values take the defaults.
type Config struct {
	// Debounce is the quiet period after an edit before it saves.
	Debounce time.Duration

	// Poll is the interval between store checks for external changes.
	Poll time.Duration

	// Grace is the interval after a confirmed save during which polled
	// content is not adopted, so a stale read of our own write can never
	// roll the page back.
	Grace time.Duration

	// Clock defaults to the system clock; tests inject a fake.
	Clock adapter.Clock

	// Watcher, when set, supplies change hints that trigger an immediate
	// poll instead of waiting out the interval. Adoption rules are the
	// same either way.
	Watcher adapter.Watcher

	// Notify receives session events, called outside session locks.
	Notify func(model.Event)
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Poll <= 0 {
		c.Poll = DefaultPoll
	}
	if c.Grace <= 0 {
		c.Grace = DefaultGrace
	}
	if c.Clock == nil {
		c.Clock = adapter.SystemClock()
	}

	return c
}

// Session synchronizes one page between the editor and its store. All
// methods are safe for concurrent use.
type Session struct {
	store adapter.PageStore
	page  model.PageID
	cfg   Config
	clock adapter.Clock

	ctx    context.Context
	cancel context.CancelFunc

	// saveMu serializes save attempts so acks arrive in submission order.
	saveMu sync.Mutex

	mu            sync.Mutex
	state         State
	local         string
	remote        string
	editVersion   uint64
	savedVersion  uint64
	resyncVersion uint64
	saving        int
	lastSaved     time.Time
	timer         adapter.Timer
	closed        bool

	hint chan struct{}
	wg   sync.WaitGroup
}

// Status is a consistent snapshot of a session's synchronization state.
type Status struct {
	State         State
	Dirty         bool
	Saving        bool
	InGrace       bool
	EditVersion   uint64
	SavedVersion  uint64
	ResyncVersion uint64
	LastSaved     time.Time
}

// New builds a session for one page. Call Load before anything else.
func New(store adapter.PageStore, page model.PageID, cfg Config) *Session {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		store:  store,
		page:   page,
		cfg:    cfg,
		clock:  cfg.Clock,
		ctx:    ctx,
		cancel: cancel,
		hint:   make(chan struct{}, 1),
	}
}

// Page returns the page this session synchronizes.
func (s *Session) Page() model.PageID { return s.page }

// Load fetches the page's current source, makes it both the local and
// confirmed content, and starts the poll loop. It can be called once.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return fmt.Errorf("session: %s is closed", s.page)
	}
	if s.state != StateIdle {
		s.mu.Unlock()

		return fmt.Errorf("session: %s already loaded", s.page)
	}
	s.state = StateFetching
	s.mu.Unlock()

	source, err := s.store.GetSource(ctx, s.page)
	if err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()

		return fmt.Errorf("session: load %s: %w", s.page, err)
	}

	s.mu.Lock()
	s.local = source
	s.remote = source
	s.state = StateSynced
	s.mu.Unlock()

	s.startLoops()

	glog.V(1).Infof("[session]%s loaded (%d bytes)", s.page, len(source))
	s.notify(model.Event{Kind: model.EventLoaded, Page: s.page})

	return nil
}

// Edit replaces the local source immediately and re-arms the debounced
// save. Edits on an unloaded or closed session are dropped.
func (s *Session) Edit(source string) {
	s.mu.Lock()
	if s.closed || s.state != StateSynced {
		s.mu.Unlock()

		return
	}

	s.local = source
	s.editVersion++
	version := s.editVersion

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.cfg.Debounce, s.debouncedSave)
	s.mu.Unlock()

	glog.V(2).Infof("[session]%s edit v%d (%d bytes)", s.page, version, len(source))
}

// SaveNow cancels any pending debounced save and saves synchronously.
// A clean session returns immediately without touching the store.
func (s *Session) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	return s.save(ctx)
}

// Source returns the authoritative local source.
func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.local
}

// Dirty reports whether local edits are not yet confirmed saved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.editVersion != s.savedVersion
}

// State reports the lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Status snapshots the synchronization state for display.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		State:         s.state,
		Dirty:         s.editVersion != s.savedVersion,
		Saving:        s.saving > 0,
		InGrace:       !s.lastSaved.IsZero() && s.clock.Now().Sub(s.lastSaved) < s.cfg.Grace,
		EditVersion:   s.editVersion,
		SavedVersion:  s.savedVersion,
		ResyncVersion: s.resyncVersion,
		LastSaved:     s.lastSaved,
	}
}

// Poke requests an immediate external-change check. Used by watch hints;
// harmless to call at any time.
func (s *Session) Poke() {
	select {
	case s.hint <- struct{}{}:
	default:
	}
}

// Close stops the debounce timer and the poll and watch loops. It does
// not flush; call SaveNow first when the latest edits must land. An
// in-flight save may still complete at the store, but its result is
// discarded here.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	glog.V(1).Infof("[session]%s closed", s.page)
}

func (s *Session) startLoops() {
	s.wg.Add(1)
	go s.pollLoop()

	if s.cfg.Watcher == nil {
		return
	}

	ch, err := s.cfg.Watcher.Watch(s.ctx)
	if err != nil {
		glog.Warningf("[session]%s watch unavailable, polling only: %v", s.page, err)

		return
	}

	s.wg.Add(1)
	go s.watchLoop(ch)
}

func (s *Session) pollLoop() {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.cfg.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			s.pollOnce(s.ctx)
		case <-s.hint:
			s.pollOnce(s.ctx)
		}
	}
}

func (s *Session) watchLoop(ch <-chan model.PageID) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case page, ok := <-ch:
			if !ok {
				return
			}
			if page == s.page {
				glog.V(2).Infof("[session]%s watch hint", s.page)
				s.Poke()
			}
		}
	}
}

func (s *Session) debouncedSave() {
	_ = s.save(s.ctx)
}

// save pushes the latest local source to the store. The content and its
// version are captured together under the lock when the save actually
// starts, so a debounced save that fired late still carries the newest
// edits. The ack compares the captured version against the confirmed
// one: a stale ack (a newer save already landed) is discarded.
func (s *Session) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.closed || s.state != StateSynced || s.editVersion == s.savedVersion {
		s.mu.Unlock()

		return nil
	}
	source := s.local
	version := s.editVersion
	s.saving++
	s.mu.Unlock()

	glog.V(1).Infof("[session]%s saving v%d (%d bytes)", s.page, version, len(source))
	err := s.store.SaveSource(ctx, s.page, source)

	s.mu.Lock()
	s.saving--

	if err != nil {
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return nil
		}

		glog.Warningf("[session]%s save v%d failed: %v", s.page, version, err)
		s.notify(model.Event{Kind: model.EventSaveFailed, Page: s.page, Version: version, Err: err})

		return fmt.Errorf("session: save %s: %w", s.page, err)
	}

	if s.closed || version <= s.savedVersion {
		s.mu.Unlock()

		return nil
	}

	s.savedVersion = version
	s.remote = source
	s.lastSaved = s.clock.Now()
	s.mu.Unlock()

	glog.V(1).Infof("[session]%s saved v%d", s.page, version)
	s.notify(model.Event{Kind: model.EventSaved, Page: s.page, Version: version})

	return nil
}

// pollOnce fetches the persisted source and decides whether to adopt it.
// Adoption requires content that differs from the confirmed reference,
// no in-flight save, no unconfirmed local edits, an expired grace
// window, and a clean parse. On every other outcome except a parse
// failure the confirmed reference is updated so the same content is not
// reconsidered each cycle; local edits always win over a concurrent
// external change.
func (s *Session) pollOnce(ctx context.Context) {
	fetched, err := s.store.GetSource(ctx, s.page)
	if err != nil {
		glog.V(2).Infof("[session]%s poll fetch failed: %v", s.page, err)

		return
	}

	var version uint64
	adopted := false

	s.mu.Lock()
	switch {
	case s.closed || s.state != StateSynced:

	case fetched == s.remote:
		// Store unchanged.

	case s.saving > 0:
		// The in-flight save will overwrite this anyway.
		s.remote = fetched

	case s.editVersion != s.savedVersion:
		// Unconfirmed local edits win.
		s.remote = fetched

	case s.clock.Now().Sub(s.lastSaved) < s.cfg.Grace:
		// Too close to our own save; this may be a stale read of the
		// content we just replaced.
		s.remote = fetched

	case fetched == s.local:
		// Our own content arrived through another path.
		s.remote = fetched

	default:
		if res := markup.Parse(fetched); !res.OK() {
			// Unparseable external content never replaces the open
			// page. The reference stays put so a fixed revision is
			// still recognized as a change.
			glog.V(1).Infof("[session]%s poll: external content has %d parse errors, ignored", s.page, len(res.Errors))

			break
		}

		s.remote = fetched
		s.local = fetched
		s.resyncVersion++
		version = s.resyncVersion
		adopted = true
	}
	s.mu.Unlock()

	if adopted {
		glog.V(1).Infof("[session]%s adopted external change (resync v%d)", s.page, version)
		s.notify(model.Event{Kind: model.EventExternalChange, Page: s.page, Version: version})
	}
}

func (s *Session) notify(ev model.Event) {
	if s.cfg.Notify == nil {
		return
	}

	s.cfg.Notify(ev)
}
