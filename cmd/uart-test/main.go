//go:build pico && pico_ir_proto_1

package main

import (
	"bytes"
	"context"
	"time"

	"sensorcode-go/bus"
	"sensorcode-go/services/hal"
	"sensorcode-go/types"
	"sensorcode-go/x/shmring"
)

// Loopback exerciser for the aux UART (hal/cap/io/serial/aux). Jumper GP8
// (TX) to GP9 (RX) so the port reads back its own bytes, then flash with
//
//	tinygo flash -target=pico -tags=pico_ir_proto_1 ./cmd/uart-test
func main() {
	println("[uart] boot …")
	time.Sleep(1500 * time.Millisecond)

	ctx := context.Background()
	b := bus.NewBus(4)
	halConn := b.NewConnection("hal")
	ui := b.NewConnection("ui")
	go hal.Run(ctx, halConn)

	ui.Publish(ui.NewMessage(bus.T("config", "hal"), hal.BoardConfig(), true))
	time.Sleep(400 * time.Millisecond)

	tOpen := bus.T("hal", "cap", "io", "serial", "aux", "control", "session_open")
	tOpened := bus.T("hal", "cap", "io", "serial", "aux", "event", "session_opened")
	tClose := bus.T("hal", "cap", "io", "serial", "aux", "control", "session_close")

	subOpened := ui.Subscribe(tOpened)

	println("[uart] session_open aux …")
	if !reqOK(ui, tOpen, 2*time.Second) {
		println("[uart] FAIL: session_open no reply")
		return
	}

	var opened types.SerialSessionOpened
	select {
	case m := <-subOpened.Channel():
		if so, ok := m.Payload.(types.SerialSessionOpened); ok {
			opened = so
		}
	case <-time.After(3 * time.Second):
	}
	if opened.RXHandle == 0 || opened.TXHandle == 0 {
		println("[uart] FAIL: missing session handles")
		return
	}
	println("[uart] session", opened.SessionID, "rx=", opened.RXHandle, "tx=", opened.TXHandle)

	rx := shmring.Get(shmring.Handle(opened.RXHandle))
	tx := shmring.Get(shmring.Handle(opened.TXHandle))
	if rx == nil || tx == nil {
		println("[uart] FAIL: ring lookup failed")
		return
	}

	// --- Smoke test ---
	println("[uart] smoke: send 'hello-loop' and read it back")
	if sendReceiveExact(tx, rx, []byte("hello-loop"), 3*time.Second) {
		println("[uart] smoke: PASS")
	} else {
		println("[uart] smoke: FAIL")
	}

	// --- Integrity test (FNV-1a over 4096 bytes, chunk 64) ---
	println("[uart] integrity: 4096 bytes, chunk 64")
	if integrityTest(tx, rx, 4096, 64, 10*time.Second) {
		println("[uart] integrity: PASS")
	} else {
		println("[uart] integrity: FAIL")
	}

	// --- Concurrent throughput test (writer + reader) ---
	println("[uart] throughput: 5s, chunk 256, concurrent R/W")
	thrConcurrent(tx, rx, 5*time.Second, 256, 256)

	// Best-effort close
	ui.Publish(ui.NewMessage(tClose, nil, false))
	time.Sleep(100 * time.Millisecond)
	println("[uart] done")
}

// ---------------- helpers ----------------

func reqOK(ui *bus.Connection, topic bus.Topic, to time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), to)
	defer cancel()
	_, err := ui.RequestWait(ctx, ui.NewMessage(topic, nil, false))
	return err == nil
}

// Smoke test: send msg and verify it comes back through the loop.
func sendReceiveExact(tx *shmring.Ring, rx *shmring.Ring, msg []byte, timeout time.Duration) bool {
	_ = tx.TryWriteFrom(msg)
	deadline := time.Now().Add(timeout)

	buf := make([]byte, 0, 4*len(msg)) // small rolling window
	tmp := make([]byte, 128)

	drain := func() {
		for {
			n := rx.TryReadInto(tmp)
			if n == 0 {
				return
			}
			buf = append(buf, tmp[:n]...)
			if len(buf) > cap(buf) {
				// keep only the tail
				copy(buf, buf[len(buf)-cap(buf):])
				buf = buf[:cap(buf)]
			}
		}
	}

	for time.Now().Before(deadline) {
		if i := bytes.Index(buf, msg); i >= 0 {
			return true
		}
		select {
		case <-rx.Readable():
			drain()
		case <-time.After(25 * time.Millisecond):
			drain()
		}
	}
	println("[uart] smoke: not found; got bytes=", len(buf))
	return false
}

// Integrity test: send deterministic stream; compare FNV-1a hashes.
func integrityTest(tx *shmring.Ring, rx *shmring.Ring, totalBytes int, chunk int, timeout time.Duration) bool {
	gen := patternGenerator(0xA5)
	const off = uint32(2166136261)
	const prime = uint32(16777619)
	txHash, rxHash := off, off

	tmp := make([]byte, 128)
	deadline := time.Now().Add(timeout)

	out := make([]byte, chunk)
	written, received := 0, 0

	for (written < totalBytes || received < totalBytes) && time.Now().Before(deadline) {
		// write step
		if written < totalBytes {
			space := tx.Space()
			if space > 0 {
				if space > (totalBytes - written) {
					space = totalBytes - written
				}
				toWrite := chunk
				if toWrite > space {
					toWrite = space
				}
				fillPattern(out[:toWrite], &gen)
				n := tx.TryWriteFrom(out[:toWrite])
				if n > 0 {
					for i := 0; i < n; i++ {
						txHash ^= uint32(out[i])
						txHash *= prime
					}
					written += n
				}
			}
		}
		// read step
		for {
			n := rx.TryReadInto(tmp)
			if n == 0 {
				break
			}
			for i := 0; i < n; i++ {
				rxHash ^= uint32(tmp[i])
				rxHash *= prime
			}
			received += n
			if received >= totalBytes {
				break
			}
		}
		// yield
		select {
		case <-rx.Readable():
		case <-time.After(time.Millisecond):
		}
	}

	println("[uart] integrity: written=", written, " received=", received)
	println("[uart] integrity: txHash=", txHash, " rxHash=", rxHash)
	return written == totalBytes && received == totalBytes && txHash == rxHash
}

// Concurrent throughput test: writer + reader goroutines with shared stop.
func thrConcurrent(tx *shmring.Ring, rx *shmring.Ring, duration time.Duration, writeChunk, readBuf int) {
	if writeChunk <= 0 {
		writeChunk = 256
	}
	if readBuf <= 0 {
		readBuf = 256
	}

	out := make([]byte, writeChunk)
	in := make([]byte, readBuf)
	gen := patternGenerator(0x42)
	fillPattern(out, &gen)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	doneW := make(chan struct{})
	doneR := make(chan struct{})
	var written, received int

	// Writer
	go func() {
		defer close(doneW)
		for {
			for {
				space := tx.Space()
				if space <= 0 {
					break
				}
				if space > writeChunk {
					space = writeChunk
				}
				out[0] ^= gen.next()
				n := tx.TryWriteFrom(out[:space])
				if n == 0 {
					break
				}
				written += n
			}
			select {
			case <-tx.Writable():
			case <-ctx.Done():
				return
			}
		}
	}()

	// Reader
	go func() {
		defer close(doneR)
		for {
			for {
				n := rx.TryReadInto(in)
				if n == 0 {
					break
				}
				received += n
			}
			select {
			case <-rx.Readable():
			case <-ctx.Done():
				// Grace drain
				grace := time.NewTimer(300 * time.Millisecond)
				defer grace.Stop()
				for {
					drained := false
					for {
						n := rx.TryReadInto(in)
						if n == 0 {
							break
						}
						received += n
						drained = true
					}
					if !drained {
						select {
						case <-rx.Readable():
						case <-grace.C:
							return
						}
					}
				}
			}
		}
	}()

	<-doneW
	<-doneR

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Nanosecond
	}
	txBps := (int64(written) * int64(time.Second)) / int64(elapsed)
	rxBps := (int64(received) * int64(time.Second)) / int64(elapsed)

	println("[uart] throughput(concurrent): TX bytes=", written, " (~", txBps, " B/s)")
	println("[uart] throughput(concurrent): RX bytes=", received, " (~", rxBps, " B/s)")
}

// --- tiny utilities (no fmt) ---

// Simple deterministic pattern generator (xorshift8 over byte).
type patGen struct{ s byte }

func patternGenerator(seed byte) patGen { return patGen{s: seed} }
func (g *patGen) next() byte {
	x := g.s
	x ^= x << 3
	x ^= x >> 5
	x ^= x << 1
	g.s = x
	return x
}
func fillPattern(dst []byte, g *patGen) {
	for i := 0; i < len(dst); i++ {
		dst[i] = g.next()
	}
}
