package core

import (
	"container/heap"
	"context"
	"math/rand"
	"sync"
	"time"
)

// PollReq is one scheduled control call, handed to the HAL loop which
// dispatches it to the owning device.
type PollReq struct {
	Addr  CapAddr
	Verb  string
	Every time.Duration
}

// ---- Schedule heap ----

type schedKey struct {
	addr CapAddr
	verb string
}

type schedule struct {
	addr   CapAddr
	verb   string
	due    int64 // UnixNano of the next fire
	every  time.Duration
	jitter time.Duration
	index  int // heap position, -1 while detached
}

type schedQueue []*schedule

func (q schedQueue) Len() int           { return len(q) }
func (q schedQueue) Less(i, j int) bool { return q[i].due < q[j].due }
func (q schedQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }

func (q *schedQueue) Push(x any) {
	s := x.(*schedule)
	s.index = len(*q)
	*q = append(*q, s)
}

func (q *schedQueue) Pop() any {
	old := *q
	n := len(old)
	s := old[n-1]
	s.index = -1
	*q = old[:n-1]
	return s
}

func (q schedQueue) top() *schedule {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

// ---- Poller ----

// Poller owns the recurring control schedules of the HAL. A min-heap on the
// next due time drives a single timer goroutine, so any number of schedules
// costs one timer and one channel send per fire.
type Poller struct {
	mu    sync.Mutex
	wake  chan struct{}
	byKey map[schedKey]*schedule
	q     schedQueue
	rng   *rand.Rand
	out   chan<- PollReq
}

func NewPoller(out chan<- PollReq) *Poller {
	return &Poller{
		wake:  make(chan struct{}, 1),
		byKey: make(map[schedKey]*schedule),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		out:   out,
	}
}

// Upsert adds or retunes a schedule. Every fire, including the first, lands
// after the interval plus a random slice of [0..jitter], which keeps
// same-interval capabilities from sampling in lockstep.
func (p *Poller) Upsert(addr CapAddr, verb string, every, jitter time.Duration) {
	if every <= 0 || verb == "" {
		return
	}
	if jitter < 0 {
		jitter = 0
	}
	key := schedKey{addr: addr, verb: verb}

	p.mu.Lock()
	if s := p.byKey[key]; s != nil {
		s.every = every
		s.jitter = jitter
		s.due = p.nextDue(every, jitter)
		heap.Fix(&p.q, s.index)
	} else {
		s = &schedule{
			addr:   addr,
			verb:   verb,
			every:  every,
			jitter: jitter,
			index:  -1,
		}
		s.due = p.nextDue(every, jitter)
		p.byKey[key] = s
		heap.Push(&p.q, s)
	}
	p.mu.Unlock()
	p.wakeup()
}

// Stop removes one schedule. Unknown keys are ignored.
func (p *Poller) Stop(addr CapAddr, verb string) {
	key := schedKey{addr: addr, verb: verb}
	p.mu.Lock()
	if s := p.byKey[key]; s != nil {
		heap.Remove(&p.q, s.index)
		delete(p.byKey, key)
	}
	p.mu.Unlock()
	p.wakeup()
}

// Defer pushes back every schedule on addr so the next poll fires a full
// interval after a spontaneous value update. Polls fill gaps in the value
// stream; they do not double-sample a capability that just reported.
func (p *Poller) Defer(addr CapAddr, emittedAt time.Time) {
	p.mu.Lock()
	for key, s := range p.byKey {
		if key.addr != addr {
			continue
		}
		due := emittedAt.Add(s.every)
		if now := time.Now(); due.Before(now) {
			due = now
		}
		s.due = due.UnixNano()
		heap.Fix(&p.q, s.index)
	}
	p.mu.Unlock()
	p.wakeup()
}

// Run blocks until ctx is cancelled. Upsert/Stop/Defer nudge the loop over
// the wake channel so a sleeping timer never delays a reshuffled heap.
func (p *Poller) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait, ok := p.next()
		switch {
		case !ok:
			// Nothing scheduled; sleep until someone changes that.
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
			}
		case wait <= 0:
			p.fire()
		default:
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
				if !timer.Stop() {
					<-timer.C
				}
			case <-timer.C:
			}
		}
	}
}

// next reports the time until the earliest schedule is due, or ok=false
// when the heap is empty.
func (p *Poller) next() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	top := p.q.top()
	if top == nil {
		return 0, false
	}
	return time.Duration(top.due - time.Now().UnixNano()), true
}

// fire pops the due schedule, re-arms it and hands the request to the HAL.
// A full out channel drops this tick; the schedule comes round again next
// interval.
func (p *Poller) fire() {
	var req PollReq
	fired := false

	p.mu.Lock()
	if top := p.q.top(); top != nil && top.due <= time.Now().UnixNano() {
		s := heap.Pop(&p.q).(*schedule)
		s.due = p.nextDue(s.every, s.jitter)
		heap.Push(&p.q, s)
		req = PollReq{Addr: s.addr, Verb: s.verb, Every: s.every}
		fired = true
	}
	p.mu.Unlock()

	if fired {
		select {
		case p.out <- req:
		default:
		}
	}
}

func (p *Poller) nextDue(every, jitter time.Duration) int64 {
	return time.Now().Add(p.jittered(every, jitter)).UnixNano()
}

func (p *Poller) jittered(every, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return every
	}
	return every + time.Duration(p.rng.Int63n(int64(jitter)+1))
}

func (p *Poller) wakeup() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
