package ffi

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// NewPayloads creates an empty payload table.
func NewPayloads() *Payloads {
	return &Payloads{
		live: make(map[uint64][]byte),
	}
}

// Payloads owns the payloads of every Error handed to the host. A payload
// lives until Free is called for its Error.
type Payloads struct {
	mutex sync.Mutex
	live  map[uint64][]byte
	next  uint64
}

func (p *Payloads) alloc(payload []byte) uint64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.next++
	p.live[p.next] = payload
	return p.next
}

// export gives e a payload unless it already has one.
func (p *Payloads) export(e *Error) *Error {
	if e.Allocated() {
		return e
	}
	var payload []byte
	if e.Kind != Propagated {
		payload = []byte(e.message)
	}
	return &Error{
		Kind:    e.Kind,
		Token:   p.alloc(payload),
		message: e.message,
		owner:   p,
	}
}

// Export converts any error into an Error owning a payload.
func (p *Payloads) Export(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && (e.Kind == Propagated || e.message == err.Error()) {
		return p.export(e)
	}
	// keep the context added while wrapping
	return p.export(&Error{Kind: Classify(err), message: err.Error()})
}

// NewPropagated copies payload into a new Propagated error. The caller may
// reuse payload afterwards.
func (p *Payloads) NewPropagated(payload []byte) *Error {
	copied := make([]byte, len(payload))
	copy(copied, payload)
	return &Error{
		Kind:  Propagated,
		Token: p.alloc(copied),
		owner: p,
	}
}

// Payload returns the payload of e while it is live.
func (p *Payloads) Payload(e *Error) ([]byte, bool) {
	if e == nil || e.owner != p {
		return nil, false
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	payload, ok := p.live[e.Token]
	return payload, ok
}

// Free releases the payload of e. Freeing twice, freeing an error that
// never crossed the boundary or one exported by another table is reported
// and otherwise harmless.
func (p *Payloads) Free(e *Error) error {
	if e == nil {
		return Errorf(NullPointer, "error is null")
	}
	if e.owner != nil && e.owner != p {
		log.WithFields(log.Fields{
			"token": e.Token,
			"kind":  e.Kind,
		}).Warn("freeing an error payload of another table")
		return Errorf(IllegalState, "error payload %d belongs to another backend", e.Token)
	}

	p.mutex.Lock()
	_, ok := p.live[e.Token]
	delete(p.live, e.Token)
	p.mutex.Unlock()

	if !ok {
		log.WithFields(log.Fields{
			"token": e.Token,
			"kind":  e.Kind,
		}).Warn("freeing an error payload that is not live")
		return Errorf(IllegalState, "error payload %d is not live", e.Token)
	}
	return nil
}

// Outstanding is the number of payloads not freed yet.
func (p *Payloads) Outstanding() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.live)
}

// Catch runs fn, converting a returned error or a panic into an exported
// Error. A panic carrying an *Error is passed through as that error.
func (p *Payloads) Catch(fn func() error) (err *Error) {
	defer func() {
		if r := recover(); r != nil {
			err = p.recovered(r)
		}
	}()
	return p.Export(fn())
}

// CatchValue is Catch for functions returning a value. The zero value is
// returned alongside any error.
func CatchValue[T any](p *Payloads, fn func() (T, error)) (value T, err *Error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value, err = zero, p.recovered(r)
		}
	}()
	v, e := fn()
	if e != nil {
		var zero T
		return zero, p.Export(e)
	}
	return v, nil
}

func (p *Payloads) recovered(r interface{}) *Error {
	if e, ok := r.(*Error); ok {
		return p.export(e)
	}
	log.WithField("panic", r).Error("recovered from panic at the host boundary")
	return p.export(&Error{Kind: Generic, message: fmt.Sprintf("panic!: %v", r)})
}
