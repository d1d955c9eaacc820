package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"myplaces/internal/mapping"
	"myplaces/internal/model"
	"myplaces/internal/session"
)

// Session websocket: a graphql-transport-ws style envelope carrying session
// events out and client reports in.
//
//	-> connection_init            <- connection_ack
//	-> ping                       <- pong
//	-> subscribe {id}             <- next {id, payload: event}... complete {id}
//	-> complete {id}
//	-> location|region {id, payload: {lat,lng}}
//	-> authorization {id, payload: {status}}
//	-> services {id, payload: {enabled}}
//	-> center|route|done {id}     <- result {id, payload} | error {id, payload}

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsReadLimit = 1 << 20
	wsIdle      = 60 * time.Second
	wsPing      = 20 * time.Second
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) write(typ, id string, payload any) error {
	msg := wsMessage{Type: typ, ID: id}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Payload = b
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(msg)
}

// SessionWSHandler handles GET /v1/map/sessions/{id}/ws
func (s *Server) SessionWSHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	c := &wsConn{conn: conn}
	log := s.Log.With(zap.String("session", sess.ID))

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsIdle))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsIdle)) })

	stop := make(chan struct{})
	var wg sync.WaitGroup
	subs := map[string]chan session.Event{}
	defer func() {
		for id, ch := range subs {
			s.Broker.Unsubscribe(sess.ID, ch)
			delete(subs, id)
		}
		close(stop)
		wg.Wait()
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsIdle))
		switch msg.Type {
		case "connection_init":
			_ = c.write("connection_ack", "", nil)
			wg.Add(1)
			go func() {
				defer wg.Done()
				ticker := time.NewTicker(wsPing)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						if err := c.write("ping", "", nil); err != nil {
							return
						}
					}
				}
			}()
		case "ping":
			_ = c.write("pong", "", nil)
		case "pong":
		case "subscribe":
			if _, dup := subs[msg.ID]; dup {
				_ = c.write("error", msg.ID, map[string]string{"message": "subscription id in use"})
				continue
			}
			ch := s.Broker.Subscribe(sess.ID)
			subs[msg.ID] = ch
			wg.Add(1)
			go func(id string, ch chan session.Event) {
				defer wg.Done()
				for evt := range ch {
					if err := c.write("next", id, evt); err != nil {
						return
					}
				}
				_ = c.write("complete", id, nil)
			}(msg.ID, ch)
		case "complete":
			if ch, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(sess.ID, ch)
				delete(subs, msg.ID)
			}
		default:
			result, err := s.command(sess, msg)
			if err != nil {
				_ = c.write("error", msg.ID, map[string]string{"message": err.Error()})
				if errors.Is(err, session.ErrClosed) {
					return
				}
				continue
			}
			_ = c.write("result", msg.ID, result)
		}
	}
}

var errUnknownCommand = errors.New("unknown message type")

// command applies one client report to sess.
func (s *Server) command(sess *session.Session, msg wsMessage) (map[string]any, error) {
	var err error
	result := map[string]any{}
	switch msg.Type {
	case "location", "region":
		var c model.Coordinate
		if err := json.Unmarshal(msg.Payload, &c); err != nil {
			return nil, err
		}
		if !c.Valid() {
			return nil, errors.New("invalid coordinate")
		}
		if msg.Type == "location" {
			err = sess.UpdateLocation(c)
		} else {
			_, err = sess.Pan(c)
		}
	case "authorization":
		var p struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, err
		}
		status, ok := mapping.ParseAuthorizationStatus(p.Status)
		if !ok {
			return nil, errors.New("unknown authorization status")
		}
		err = sess.SetAuthorization(status)
	case "services":
		var p struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, err
		}
		err = sess.SetServicesEnabled(p.Enabled)
	case "center":
		var found bool
		found, err = sess.CenterOnUser()
		result["centered"] = found
	case "route":
		_, err = sess.Route()
	case "done":
		var addr string
		addr, err = sess.Done()
		result["address"] = addr
	default:
		return nil, errUnknownCommand
	}
	var f *mapping.Failure
	if errors.As(err, &f) {
		result["failure"] = f.Kind
		err = nil
	}
	return result, err
}
