package serial_raw

import (
	"context"
	"time"

	"sensorcode-go/x/shmring"
)

// session bridges the port to one pair of registered rings. rx carries port
// bytes to the client, tx carries client bytes to the port.
type session struct {
	id     uint32
	rxH    shmring.Handle
	rx     *shmring.Ring
	txH    shmring.Handle
	tx     *shmring.Ring
	cancel context.CancelFunc
	done   chan struct{}
}

func (d *Device) startSession(rxSize, txSize int) *session {
	rxH, rx := shmring.NewRegistered(rxSize)
	txH, tx := shmring.NewRegistered(txSize)

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:     d.nextID.Add(1),
		rxH:    rxH,
		rx:     rx,
		txH:    txH,
		tx:     tx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	d.active = s
	go d.pump(ctx, s)
	return s
}

func (d *Device) closeSession() {
	s := d.active
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
	// Unregister the handles; a client holding a stale one sees lookups fail.
	shmring.Close(s.rxH)
	shmring.Close(s.txH)
	d.active = nil
}

// flushStale discards bytes sitting in the UART RX path from before the
// session. Bounded: it stops after a quiet gap or a hard cap, whichever
// comes first, so session_open cannot stall on a chattering peer.
func (d *Device) flushStale() {
	const quiet = 5 * time.Millisecond
	const limit = 15 * time.Millisecond

	var tmp [64]byte
	start := time.Now()
	deadline := start.Add(quiet)
	for {
		if d.port.TryRead(tmp[:]) > 0 {
			deadline = time.Now().Add(quiet)
			continue
		}
		now := time.Now()
		if now.After(deadline) || now.Sub(start) >= limit {
			return
		}
		select {
		case <-d.port.Readable():
		case <-time.After(time.Millisecond):
		}
	}
}

// pump is the single goroutine that owns the port for the session's
// lifetime. It moves bytes both ways until neither side makes progress,
// then parks on the edge channels.
func (d *Device) pump(ctx context.Context, s *session) {
	defer close(s.done)

	for {
		in := d.fillRX(s.rx)
		out := d.drainTX(s.tx)
		if in || out {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-d.port.Readable():
		case <-d.port.Writable():
		case <-s.rx.Writable():
		case <-s.tx.Readable():
		}
	}
}

// fillRX moves port RX bytes into the ring until the port runs dry or the
// ring fills. Writes land in the first span before the wrap span.
func (d *Device) fillRX(r *shmring.Ring) bool {
	moved := false
	for {
		p1, p2 := r.WriteAcquire()
		if len(p1) == 0 {
			return moved // ring full
		}
		n := d.port.TryRead(p1)
		if n == 0 {
			return moved
		}
		if n == len(p1) && len(p2) > 0 {
			n += d.port.TryRead(p2)
		}
		r.WriteCommit(n)
		moved = true
	}
}

// drainTX moves ring bytes out of the port until the ring empties or the
// port TX path backs up.
func (d *Device) drainTX(r *shmring.Ring) bool {
	moved := false
	for {
		p1, p2 := r.ReadAcquire()
		if len(p1) == 0 {
			return moved // ring empty
		}
		n := d.port.TryWrite(p1)
		if n == 0 {
			return moved
		}
		if n == len(p1) && len(p2) > 0 {
			n += d.port.TryWrite(p2)
		}
		r.ReadRelease(n)
		moved = true
	}
}
