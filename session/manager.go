package session

import (
	"sync"

	"github.com/devblok/roast/ffi"
	log "github.com/sirupsen/logrus"
)

// Handle identifies a session to the host. Zero is never a valid handle.
type Handle uint64

// NewManager creates an empty manager. The first handle is 1.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[Handle]*Session),
		next:     1,
	}
}

// Manager stores sessions between calls and lends out the running one.
// Its bookkeeping may be used from any goroutine, but a Session is not safe
// for concurrent use: With and Run must be called from the goroutine that
// owns the session, which for the running one is the loop's goroutine.
// Calls made from a step function re-enter freely.
type Manager struct {
	mutex    sync.Mutex
	sessions map[Handle]*Session
	next     Handle

	running        Handle
	runningSession *Session
}

// Insert stores s and returns its new handle.
func (m *Manager) Insert(s *Session) (Handle, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.next == 0 {
		return 0, ffi.Errorf(ffi.IllegalState, "session handle space exhausted")
	}
	h := m.next
	m.next++
	m.sessions[h] = s
	log.WithField("backend", h).Info("session created")
	return h, nil
}

// Check validates h: it must be non zero, no other session may be running,
// and it must be stored or running.
func (m *Manager) Check(h Handle) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.check(h)
}

func (m *Manager) check(h Handle) error {
	if h == 0 {
		return ffi.Errorf(ffi.NullPointer, "backend handle is null")
	}
	if m.running != 0 && m.running != h {
		return ffi.Errorf(ffi.IllegalState, "only one backend can run its event loop at a time")
	}
	if _, ok := m.sessions[h]; !ok && m.running != h {
		return ffi.Errorf(ffi.IllegalState, "backend handle does not point to a valid session")
	}
	return nil
}

func (m *Manager) get(h Handle) *Session {
	if h == m.running {
		return m.runningSession
	}
	return m.sessions[h]
}

// With calls fn with the session behind h, stored or running.
func (m *Manager) With(h Handle, fn func(*Session) error) error {
	m.mutex.Lock()
	if err := m.check(h); err != nil {
		m.mutex.Unlock()
		return err
	}
	s := m.get(h)
	m.mutex.Unlock()
	return fn(s)
}

// Run moves the session behind h into the running slot and runs its event
// loop. The session is stored again when the loop returns.
func (m *Manager) Run(h Handle, step func() error) error {
	m.mutex.Lock()
	if err := m.check(h); err != nil {
		m.mutex.Unlock()
		return err
	}
	if m.running == h {
		m.mutex.Unlock()
		return ffi.Errorf(ffi.IllegalState, "cannot run a backend twice")
	}

	s := m.sessions[h]
	delete(m.sessions, h)
	m.running, m.runningSession = h, s
	m.mutex.Unlock()

	defer func() {
		m.mutex.Lock()
		m.sessions[h] = s
		m.running, m.runningSession = 0, nil
		m.mutex.Unlock()
	}()

	// the lock is not held while the loop runs, steps call back in
	return s.RunEventLoop(step)
}

// Running is the handle of the running session, zero when none is.
func (m *Manager) Running() Handle {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.running
}

// Len is the number of sessions, running or not.
func (m *Manager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	n := len(m.sessions)
	if m.running != 0 {
		n++
	}
	return n
}

// Destroy destroys every stored session. Call it at process teardown, not
// while a loop is running.
func (m *Manager) Destroy() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for h, s := range m.sessions {
		s.Destroy()
		delete(m.sessions, h)
	}
}
