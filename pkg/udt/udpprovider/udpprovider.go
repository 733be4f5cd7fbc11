// Package udpprovider is a loopback-friendly udt.Provider implemented over
// a single UDP socket. A post either transmits an active message to a peer
// and waits for a reply datagram from that same peer, or (the wildcard
// receive) posts a pure receive with nothing to transmit. Incoming
// datagrams are matched back to whichever local slot is posted for their
// source address, never by a value the sender chose — a real GNI-style
// provider correlates completions to the physical receive slot a datagram
// landed in, not to an id invented by whoever sent it. It exists to give
// pkg/udt's demos and integration tests a real (if unreliable, true to the
// transport's name) wire underneath them instead of an in-memory fake.
package udpprovider

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"github.com/archfabric/ugni-core/pkg/status"
	"github.com/archfabric/ugni-core/pkg/udt"
	"github.com/higebu/netfd"
	"github.com/sirupsen/logrus"
)

// frameHeaderSize is the wire prefix written ahead of every payload:
// Header.Type (1) + Header.AMID (1) + Header.Length (2). The post id never
// goes on the wire: it is purely local bookkeeping between Post and
// Probe/WaitByID/Cancel.
const frameHeaderSize = 4

// maxInFlight bounds the number of posts this provider will track
// concurrently; Post reports status.NoResource once it is reached, the
// same backpressure signal a capacity-limited vendor provider would give.
const maxInFlight = 4096

// pendingSlot is a posted receive: where to deliver the next datagram that
// matches it, and which local id to report that delivery under.
type pendingSlot struct {
	id   udt.PostID
	addr string // remote address this slot awaits a reply from; "" for the wildcard slot

	recvHeader  *udt.Header
	recvPayload []byte
}

// Provider implements udt.Provider over a bound *net.UDPConn. Endpoints are
// addressed by *net.UDPAddr (the ProviderEndpoint the caller passes to
// udt.NewInterface/NewEndpoint must be one).
type Provider struct {
	conn       *net.UDPConn
	fd         int
	log        *logrus.Logger
	rxHeadroom int

	globalMu sync.Mutex // exposed via Mutex(): serializes calls per spec §5

	dataMu   sync.Mutex // guards the slot maps and completed queue against recvLoop
	byID     map[udt.PostID]*pendingSlot
	byAddr   map[string]*pendingSlot
	wildcard *pendingSlot

	completed []udt.PostID
	readErrCh chan error
}

// New binds a UDP socket at localAddr (":0" for an ephemeral port) and
// starts its receive loop. rxHeadroom must match the Config.RxHeadroom the
// owning Interface was built with: incoming payload bytes are written
// starting after that many reserved bytes in each receive region.
func New(localAddr string, rxHeadroom int, log *logrus.Logger) (*Provider, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if rxHeadroom < 0 {
		rxHeadroom = 0
	}
	addr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		conn:       conn,
		fd:         netfd.GetFdFromConn(conn),
		log:        log,
		rxHeadroom: rxHeadroom,
		byID:       make(map[udt.PostID]*pendingSlot),
		byAddr:     make(map[string]*pendingSlot),
		readErrCh:  make(chan error, 1),
	}
	log.WithFields(logrus.Fields{"fd": p.fd, "local": conn.LocalAddr()}).Debug("udpprovider: socket bound")
	go p.recvLoop()
	return p, nil
}

// LocalAddr reports the bound socket address, for wiring peers together in
// demos and tests.
func (p *Provider) LocalAddr() *net.UDPAddr {
	return p.conn.LocalAddr().(*net.UDPAddr)
}

// Mutex is the global_lock every provider datagram-API call must be
// serialized under (spec §5). udt calls Post/WaitByID/Cancel with it
// already held (Probe without it), so all four synchronize against the recvLoop goroutine with a
// separate internal lock (dataMu) rather than relocking this one.
func (p *Provider) Mutex() sync.Locker { return &p.globalMu }

// Post either registers a pure receive (sendHeader.Type == udt.HeaderEmpty
// with no payload — the wildcard receive never transmits) or transmits an
// active message to ep and registers a receive for whatever reply comes
// back from that same address.
func (p *Provider) Post(ctx context.Context, ep udt.ProviderEndpoint, id udt.PostID, sendHeader udt.Header, sendPayload []byte, recvHeader *udt.Header, recvPayload []byte) error {
	addr, ok := ep.(*net.UDPAddr)
	if !ok {
		return status.InvalidParam
	}

	slot := &pendingSlot{id: id, recvHeader: recvHeader, recvPayload: recvPayload}

	p.dataMu.Lock()
	if len(p.byID) >= maxInFlight {
		p.dataMu.Unlock()
		return status.NoResource
	}

	if sendHeader.Type == udt.HeaderEmpty && len(sendPayload) == 0 {
		if p.wildcard != nil {
			p.dataMu.Unlock()
			return status.NoResource
		}
		p.wildcard = slot
		p.byID[id] = slot
		p.dataMu.Unlock()
		return nil
	}

	slot.addr = addr.String()
	p.byAddr[slot.addr] = slot
	p.byID[id] = slot
	p.dataMu.Unlock()

	frame := make([]byte, frameHeaderSize+len(sendPayload))
	frame[0] = byte(sendHeader.Type)
	frame[1] = sendHeader.AMID
	binary.BigEndian.PutUint16(frame[2:4], sendHeader.Length)
	copy(frame[frameHeaderSize:], sendPayload)

	if _, err := p.conn.WriteToUDP(frame, addr); err != nil {
		p.dataMu.Lock()
		delete(p.byID, id)
		if p.byAddr[slot.addr] == slot {
			delete(p.byAddr, slot.addr)
		}
		p.dataMu.Unlock()
		return fmt.Errorf("udpprovider: write: %w", err)
	}
	return nil
}

func (p *Provider) Probe(ctx context.Context) (udt.PostID, bool, error) {
	select {
	case err := <-p.readErrCh:
		return 0, false, err
	default:
	}

	p.dataMu.Lock()
	defer p.dataMu.Unlock()
	if len(p.completed) == 0 {
		return 0, false, nil
	}
	id := p.completed[0]
	p.completed = p.completed[1:]
	return id, true, nil
}

// WaitByID drains the bookkeeping for id — by the time Probe has reported
// it, recvLoop has already copied the frame into the caller's recv regions
// and removed the slot from the address/wildcard and id indexes, so this
// only makes sure the id is forgotten.
func (p *Provider) WaitByID(ctx context.Context, ep udt.ProviderEndpoint, id udt.PostID) error {
	p.dataMu.Lock()
	defer p.dataMu.Unlock()
	delete(p.byID, id)
	return nil
}

// Cancel removes the local bookkeeping for a post that has not yet
// completed. It cannot un-send a datagram already in flight over UDP — a
// best-effort cancel, consistent with the transport's own
// unreliable-delivery contract.
func (p *Provider) Cancel(ctx context.Context, ep udt.ProviderEndpoint, id udt.PostID) error {
	p.dataMu.Lock()
	defer p.dataMu.Unlock()

	slot, ok := p.byID[id]
	if !ok {
		return nil
	}
	delete(p.byID, id)
	if slot.addr == "" {
		if p.wildcard == slot {
			p.wildcard = nil
		}
		return nil
	}
	if p.byAddr[slot.addr] == slot {
		delete(p.byAddr, slot.addr)
	}
	return nil
}

// Close shuts down the receive loop and the underlying socket.
func (p *Provider) Close() error {
	return p.conn.Close()
}

func (p *Provider) recvLoop() {
	buf := make([]byte, 65536)
	for {
		n, srcAddr, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case p.readErrCh <- err:
			default:
			}
			return
		}
		if n < frameHeaderSize {
			p.log.WithField("n", n).Warn("udpprovider: short datagram dropped")
			continue
		}

		header := udt.Header{
			Type:   udt.HeaderType(buf[0]),
			AMID:   buf[1],
			Length: binary.BigEndian.Uint16(buf[2:4]),
		}
		payload := buf[frameHeaderSize:n]

		p.dataMu.Lock()
		key := srcAddr.String()
		slot, ok := p.byAddr[key]
		if ok {
			delete(p.byAddr, key)
		} else if p.wildcard != nil {
			slot = p.wildcard
			p.wildcard = nil
		}
		if slot == nil {
			p.dataMu.Unlock()
			p.log.WithField("addr", key).Debug("udpprovider: datagram from unmatched peer dropped")
			continue
		}
		delete(p.byID, slot.id)

		if p.rxHeadroom+len(payload) > len(slot.recvPayload) {
			p.dataMu.Unlock()
			p.log.WithFields(logrus.Fields{"addr": key, "n": len(payload)}).Warn("udpprovider: oversized datagram dropped")
			continue
		}

		*slot.recvHeader = header
		copy(slot.recvPayload[p.rxHeadroom:], payload)
		p.completed = append(p.completed, slot.id)
		p.dataMu.Unlock()
	}
}
