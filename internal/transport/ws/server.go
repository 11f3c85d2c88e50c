// Package ws exposes the market runtime over a websocket endpoint. One
// connection is one agent session: HELLO/WELCOME handshake, then OP messages
// in and RESULT/EVENT messages out.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"bazaarcraft/internal/market"
	"bazaarcraft/internal/protocol"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
	outQueue     = 64
)

type Server struct {
	rt  *market.Runtime
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(rt *market.Runtime, logger *log.Logger) *Server {
	return &Server{
		rt:  rt,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		agentID, agentName, out := s.handshake(conn)
		if agentID == uuid.Nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeOp {
				continue
			}
			var op protocol.OpMsg
			if err := json.Unmarshal(msg, &op); err != nil {
				continue
			}
			if op.ProtocolVersion != protocol.Version {
				continue
			}
			s.rt.Ops() <- market.OpEnvelope{
				Agent:     agentID,
				AgentName: agentName,
				Op:        op,
				Out:       out,
			}
		}

		s.rt.Leave() <- agentID
	}
}

func (s *Server) handshake(conn *websocket.Conn) (uuid.UUID, string, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return uuid.Nil, "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.closePolicy(conn, "expected HELLO")
		return uuid.Nil, "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return uuid.Nil, "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		s.closePolicy(conn, "bad protocol_version")
		return uuid.Nil, "", nil
	}
	name := strings.TrimSpace(hello.AgentName)
	if name == "" {
		name = "agent"
	}

	// An agent that remembers its id resumes the same market identity.
	var agentID uuid.UUID
	if hello.AgentID != "" {
		id, err := uuid.Parse(hello.AgentID)
		if err != nil {
			s.closePolicy(conn, "bad agent_id")
			return uuid.Nil, "", nil
		}
		agentID = id
	}

	out := make(chan []byte, outQueue)
	respCh := make(chan market.JoinResponse, 1)
	s.rt.Join() <- market.JoinRequest{
		AgentID: agentID,
		Name:    name,
		Out:     out,
		Resp:    respCh,
	}
	resp := <-respCh

	cfg := s.rt.Config()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         resp.AgentID.String(),
		MarketParams: protocol.MarketParams{
			MaxShopsPerOwner:   cfg.MaxShopsPerOwner,
			MaxListingsPerShop: cfg.MaxListingsPerShop,
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.rt.Leave() <- resp.AgentID
		return uuid.Nil, "", nil
	}

	return resp.AgentID, name, out
}

func (s *Server) closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
