// Package udpchannel implements the UDP channel of spec.md §4.4: the
// broadcast socket (passive VehicleAnnouncement listening plus
// self-reception suppression) and the unicast socket (active
// VehicleIdentification request/gather transactions).
//
// Grounded on the teacher's internal/server/udp_server.go: one
// receiver goroutine per socket hands datagrams to a small fixed
// worker pool over a buffered channel (recvLoop/workerLoop), adapted
// from "many DNS queries per second, drop under load" to "a handful of
// VehicleAnnouncements per discovery window, never drop" — so the
// channel here is sized generously and workerLoop never discards.
package udpchannel

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/hagenberger/doip-client/doiperr"
	"github.com/hagenberger/doip-client/internal/executor"
	"github.com/hagenberger/doip-client/internal/logging"
	"github.com/hagenberger/doip-client/internal/pool"
	"github.com/hagenberger/doip-client/internal/socket"
	"github.com/hagenberger/doip-client/internal/synctimer"
	"github.com/hagenberger/doip-client/internal/wire"
)

// datagramBufferPool reduces allocations for incoming UDP datagrams,
// the same pooling idiom the teacher's udp_server.go bufferPool uses
// for incoming DNS packets — sized to the UDP channel's payload
// ceiling (spec.md §3) instead of the teacher's DNS message ceiling.
var datagramBufferPool = pool.New(func() *[]byte {
	buf := make([]byte, wire.UDPChannelMaxPayload+wire.HeaderSize)
	return &buf
})

// CollectionWindow is kDoIPCtrl (spec.md §4.4): how long
// SendVehicleIdentificationRequest waits for VehicleAnnouncements
// before returning the aggregate.
const CollectionWindow = 2000 * time.Millisecond

// PassiveHandler receives every VehicleAnnouncement the broadcast
// socket hears, independent of any in-flight active transaction
// (spec.md §4.4 VehicleDiscovery).
type PassiveHandler interface {
	OnVehicleAnnouncement(ann wire.VehicleAnnouncement)
}

// Options configures a Channel.
type Options struct {
	LocalAddr        string // bind address for the unicast socket, e.g. "0.0.0.0:0"
	BroadcastAddr    string // bind address for the broadcast socket
	DestinationAddr  string // where SendVehicleIdentificationRequest sends, e.g. LAN broadcast:13400
	PassiveHandler   PassiveHandler
	WorkersPerSocket int
	Logger           *slog.Logger
}

type datagram struct {
	bufPtr *[]byte
	n      int
	peer   *net.UDPAddr
}

func (d datagram) buf() []byte {
	if d.bufPtr == nil {
		return nil
	}
	return (*d.bufPtr)[:d.n]
}

// Channel owns the broadcast and unicast UDP sockets and the single
// VehicleIdentification active-transaction state machine
// (spec.md §4.4: "UDP Channel state is the product of a
// VehicleDiscovery state... and a VehicleIdentification state").
type Channel struct {
	opts Options
	log  *slog.Logger

	broadcastConn *net.UDPConn
	unicastConn   *net.UDPConn
	localIPs      map[string]bool

	wg   sync.WaitGroup
	stop chan struct{}

	txMu sync.Mutex // serializes VehicleIdentification transactions

	// out runs every outbound unicast write on its own worker goroutine,
	// so writes to the unicast socket are serialized on one goroutine.
	out       *executor.Executor
	outCancel context.CancelFunc

	collectMu sync.Mutex
	collecting bool
	collected  []wire.VehicleAnnouncement
	timer      *synctimer.Timer
}

// New builds an unopened Channel.
func New(opts Options) *Channel {
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	if opts.WorkersPerSocket <= 0 {
		opts.WorkersPerSocket = 8
	}
	return &Channel{
		opts:  opts,
		log:   logging.Component(l, "udpchannel"),
		stop:  make(chan struct{}),
		timer: synctimer.New(),
		out:   executor.New(4),
	}
}

// Startup opens both sockets and starts their receive/worker
// goroutines (spec.md §4.4: "sockets are opened on Startup, bound...").
func (c *Channel) Startup(ctx context.Context) error {
	outCtx, cancel := context.WithCancel(context.Background())
	c.outCancel = cancel
	go c.out.Run(outCtx)

	bc, err := socket.ListenUDPBroadcast(ctx, c.opts.BroadcastAddr)
	if err != nil {
		return err
	}
	uc, err := socket.ListenUDPUnicast(ctx, c.opts.LocalAddr)
	if err != nil {
		_ = bc.Close()
		return err
	}
	c.broadcastConn = bc
	c.unicastConn = uc

	ips, err := localInterfaceIPs()
	if err != nil {
		c.log.Warn("failed to enumerate local interface addresses for self-reception suppression", "err", err)
		ips = map[string]bool{}
	}
	c.localIPs = ips

	c.startSocket(c.broadcastConn)
	c.startSocket(c.unicastConn)
	return nil
}

func (c *Channel) startSocket(conn *net.UDPConn) {
	ch := make(chan datagram, c.opts.WorkersPerSocket*4)
	c.wg.Add(1)
	go c.recvLoop(conn, ch)
	for i := 0; i < c.opts.WorkersPerSocket; i++ {
		c.wg.Add(1)
		go c.workerLoop(conn, ch)
	}
}

func (c *Channel) recvLoop(conn *net.UDPConn, out chan<- datagram) {
	defer c.wg.Done()
	for {
		bufPtr := datagramBufferPool.Get()
		n, peer, err := conn.ReadFromUDP(*bufPtr)
		if err != nil {
			datagramBufferPool.Put(bufPtr)
			select {
			case <-c.stop:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.log.Warn("udp read failed", "err", err)
			return
		}
		select {
		case out <- datagram{bufPtr: bufPtr, n: n, peer: peer}:
		case <-c.stop:
			datagramBufferPool.Put(bufPtr)
			return
		}
	}
}

func (c *Channel) workerLoop(conn *net.UDPConn, in <-chan datagram) {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case dg, ok := <-in:
			if !ok {
				return
			}
			c.handleDatagram(conn, dg)
		}
	}
}

func (c *Channel) handleDatagram(conn *net.UDPConn, dg datagram) {
	defer func() {
		if dg.bufPtr != nil {
			datagramBufferPool.Put(dg.bufPtr)
		}
	}()

	if c.localIPs[dg.peer.IP.String()] {
		return // self-reception suppression (spec.md §4.4, §8)
	}

	buf := dg.buf()
	frame, result, err := wire.DecodeDatagram(buf, wire.ChannelUDP)
	if err != nil {
		c.log.Warn("dropping malformed datagram", "err", err)
		return
	}
	if result.Nack != nil {
		c.log.Warn("udp channel received NACK", "code", result.Nack.String())
		return
	}
	if frame.Header.PayloadType != wire.PayloadVehicleAnnouncement {
		c.log.Warn("unexpected udp payload type", "type", frame.Header.PayloadType.String())
		return
	}

	ann := wire.VehicleAnnouncement{Payload: append([]byte(nil), frame.Payload...), FromIP: dg.peer.IP.String()}

	if c.opts.PassiveHandler != nil {
		c.opts.PassiveHandler.OnVehicleAnnouncement(ann)
	}

	c.collectMu.Lock()
	if c.collecting {
		c.collected = append(c.collected, ann)
	}
	c.collectMu.Unlock()
}

// SendVehicleIdentificationRequest drives the active
// VehicleIdentification transaction (spec.md §4.4): send on the
// unicast socket, then wait the full CollectionWindow (or until ctx is
// cancelled, whichever comes first) gathering every VehicleAnnouncement
// observed, then return the aggregate.
func (c *Channel) SendVehicleIdentificationRequest(ctx context.Context, mode wire.VehicleIdentificationMode, selector []byte) ([]wire.VehicleAnnouncement, error) {
	c.txMu.Lock()
	defer c.txMu.Unlock()

	payloadType, payload := wire.BuildVehicleIdentificationRequest(mode, selector)
	msg := wire.Compose(wire.Version2012, payloadType, payload)

	dest, err := net.ResolveUDPAddr("udp", c.opts.DestinationAddr)
	if err != nil {
		return nil, doiperr.NewDoipError(doiperr.DoipGenericError, err)
	}

	c.collectMu.Lock()
	c.collecting = true
	c.collected = nil
	c.collectMu.Unlock()
	defer func() {
		c.collectMu.Lock()
		c.collecting = false
		c.collectMu.Unlock()
	}()

	var writeErr error
	wrote := make(chan struct{})
	submitted := c.out.SubmitBlocking(ctx, func() {
		_, writeErr = c.unicastConn.WriteToUDP(msg, dest)
		close(wrote)
	})
	if !submitted {
		return nil, doiperr.NewDoipError(doiperr.DoipGenericError, ctx.Err())
	}
	<-wrote
	if writeErr != nil {
		return nil, doiperr.FromBoostSupportError(doiperr.NewBoostSupportError(doiperr.BoostSupportSocketError, writeErr))
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.timer.Cancel()
		case <-done:
		}
	}()

	c.timer.WaitForTimeout(func() {}, func() {}, CollectionWindow)
	close(done)

	c.collectMu.Lock()
	defer c.collectMu.Unlock()
	return append([]wire.VehicleAnnouncement(nil), c.collected...), nil
}

// Shutdown closes both sockets and waits for their goroutines to exit.
func (c *Channel) Shutdown() {
	close(c.stop)
	if c.outCancel != nil {
		c.outCancel()
	}
	if c.broadcastConn != nil {
		_ = c.broadcastConn.Close()
	}
	if c.unicastConn != nil {
		_ = c.unicastConn.Close()
	}
	c.wg.Wait()
}

func localInterfaceIPs() (map[string]bool, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	ips := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip != nil {
			ips[ip.String()] = true
		}
	}
	return ips, nil
}
