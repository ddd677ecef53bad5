// Package network carries input packets to agents over UDP and control
// messages over WebSocket.
package network

import (
	"errors"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"kvmhost/internal/protocol"
)

const (
	agentTimeout    = 30 * time.Second
	cleanupInterval = 10 * time.Second
)

// ErrNoAgent is returned when sending to a screen that has not registered.
var ErrNoAgent = errors.New("agent not registered")

// UDPSender is the Host-side UDP sender that delivers binary input events
// to registered agents with minimal overhead. Agents register under their
// screen name.
type UDPSender struct {
	conn     *net.UDPConn
	port     int
	agents   map[string]*udpAgent
	agentsMu sync.RWMutex
	seq      uint32 // atomic, monotonically increasing
	done     chan struct{}

	// OnRegister is called when a screen registers for the first time.
	OnRegister func(name string)
}

type udpAgent struct {
	addr     *net.UDPAddr
	lastSeen time.Time
}

// NewUDPSender creates a new UDP sender for the host.
func NewUDPSender(port int) *UDPSender {
	return &UDPSender{
		port:   port,
		agents: make(map[string]*udpAgent),
		done:   make(chan struct{}),
	}
}

// Start binds the UDP socket and begins listening for agent registrations.
func (s *UDPSender) Start() error {
	addr := &net.UDPAddr{Port: s.port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	s.conn = conn

	// 1 MB write buffer for burst writes
	conn.SetWriteBuffer(1 << 20)
	// 64 KB read buffer for register/heartbeat
	conn.SetReadBuffer(1 << 16)

	log.Printf("UDP Sender: Listening on %s", conn.LocalAddr())

	go s.readLoop()
	go s.cleanupLoop()

	return nil
}

// Addr returns the bound local address.
func (s *UDPSender) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// readLoop listens for register and heartbeat packets from agents.
func (s *UDPSender) readLoop() {
	buf := make([]byte, protocol.UDPHeaderSize+1+protocol.MaxScreenName)
	for {
		n, remoteAddr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}

		pkt, err := protocol.DecodeUDPPacket(buf[:n])
		if err != nil {
			continue
		}

		switch pkt.Type {
		case protocol.UDPPacketRegister:
			if pkt.Name == "" {
				continue
			}
			s.register(pkt.Name, remoteAddr)

			// Reply with Ack so agent can confirm UDP connectivity
			ack := &protocol.UDPPacket{
				Type:      protocol.UDPPacketAck,
				Timestamp: time.Now().UnixMilli(),
			}
			s.conn.WriteToUDP(protocol.EncodeUDPPacket(ack), remoteAddr)

		case protocol.UDPPacketHeartbeat:
			s.touch(remoteAddr)
		}
	}
}

func (s *UDPSender) register(name string, addr *net.UDPAddr) {
	s.agentsMu.Lock()
	_, exists := s.agents[name]
	s.agents[name] = &udpAgent{addr: addr, lastSeen: time.Now()}
	s.agentsMu.Unlock()

	if !exists {
		log.Printf("UDP Sender: Agent %q registered from %s", name, addr)
		if s.OnRegister != nil {
			s.OnRegister(name)
		}
	}
}

// touch refreshes the agent sending from addr. Heartbeats from unknown
// addresses are ignored; the agent must register with its name first.
func (s *UDPSender) touch(addr *net.UDPAddr) {
	s.agentsMu.Lock()
	defer s.agentsMu.Unlock()
	for _, agent := range s.agents {
		if agent.addr.IP.Equal(addr.IP) && agent.addr.Port == addr.Port {
			agent.lastSeen = time.Now()
		}
	}
}

// cleanupLoop removes agents that haven't sent a heartbeat recently.
func (s *UDPSender) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.expire(time.Now())
		case <-s.done:
			return
		}
	}
}

func (s *UDPSender) expire(now time.Time) {
	s.agentsMu.Lock()
	defer s.agentsMu.Unlock()
	for name, agent := range s.agents {
		if now.Sub(agent.lastSeen) > agentTimeout {
			log.Printf("UDP Sender: Removing stale agent %q", name)
			delete(s.agents, name)
		}
	}
}

// Send stamps pkt with the next sequence number and sends it to the named
// screen. Critical events (keys, buttons, enter/leave, clipboard) are sent
// multiple times for redundancy since UDP has no delivery guarantee.
func (s *UDPSender) Send(name string, pkt *protocol.UDPPacket) error {
	s.agentsMu.RLock()
	agent, ok := s.agents[name]
	s.agentsMu.RUnlock()
	if !ok {
		return ErrNoAgent
	}

	pkt.Seq = atomic.AddUint32(&s.seq, 1)
	if pkt.Timestamp == 0 {
		pkt.Timestamp = time.Now().UnixMilli()
	}

	redundancy := 3
	switch pkt.Type {
	case protocol.UDPPacketMouseMove, protocol.UDPPacketMouseRelative:
		redundancy = 1
	}

	data := protocol.EncodeUDPPacket(pkt)
	for i := 0; i < redundancy; i++ {
		if _, err := s.conn.WriteToUDP(data, agent.addr); err != nil {
			return err
		}
	}
	return nil
}

// HasAgent returns true if the named screen is registered.
func (s *UDPSender) HasAgent(name string) bool {
	s.agentsMu.RLock()
	defer s.agentsMu.RUnlock()
	_, ok := s.agents[name]
	return ok
}

// Stop shuts down the UDP sender.
func (s *UDPSender) Stop() {
	close(s.done)
	if s.conn != nil {
		s.conn.Close()
	}
}
