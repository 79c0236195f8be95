package api

import (
	"encoding/binary"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ganzin/gazeengine/internal/gaze"
	"github.com/ganzin/gazeengine/internal/gaze/intake"
	"github.com/ganzin/gazeengine/internal/gaze/session"
	"github.com/ganzin/gazeengine/internal/httputil"
)

// ackEvery controls how often the session websocket acknowledges
// frames back to the client, matching spec.md §6's "periodic ack" note
// for the raw ingestion path.
const ackEvery = 50

// upgrader accepts same-origin and cross-origin websocket clients alike
// — this engine is a local backend for a reading-assistance frontend,
// not a public-facing service, so there is no browser Origin to police.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsGazeFrame struct {
	Timestamp int64 `json:"timestamp"`
	GazeData  struct {
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		Confidence float64 `json:"confidence"`
	} `json:"gaze_data"`
}

type wsAckMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type wsFeedbackMessage struct {
	Type    string         `json:"type"`
	Command wsFeedbackBody `json:"command"`
}

type wsFeedbackBody struct {
	Kind    string `json:"kind"`
	AOIID   string `json:"aoi_id"`
	TsNs    int64  `json:"ts_ns"`
	Message string `json:"message"`
}

// handleSessionWS serves the raw-sample ingestion and feedback-push
// websocket for one session, at /ws/sessions/{id}. If the id has no
// registered session yet, one is created and started against a
// PushSource — the alternative, push-fed intake path to the device/mock
// SampleSource a /api/session/start caller selects (spec.md §6).
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/ws/sessions/")
	if id == "" {
		httputil.BadRequest(w, "missing session id")
		return
	}

	sess, err := s.registry.Get(id)
	if err != nil {
		sess, err = s.createPushSession(r, id)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	out := make(chan []byte, 16)
	done := make(chan struct{})

	subscriberID := newSessionID()
	triggers, unsubscribe := sess.SubscribeFeedback(subscriberID)
	defer unsubscribe()

	go func() {
		defer close(done)
		for {
			select {
			case msg, ok := <-out:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case t, ok := <-triggers:
				if !ok {
					return
				}
				body, err := marshalSSE(wsFeedbackMessage{
					Type: "feedback",
					Command: wsFeedbackBody{
						Kind:    string(t.Kind),
						AOIID:   t.AOIID,
						TsNs:    t.TsNs,
						Message: t.Message,
					},
				})
				if err != nil {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
					return
				}
			}
		}
	}()

	frameCount := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var frame wsGazeFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		sample := gaze.Sample{
			TsNs:       frame.Timestamp * int64(time.Millisecond),
			DeviceX:    frame.GazeData.X,
			DeviceY:    frame.GazeData.Y,
			Confidence: frame.GazeData.Confidence,
			Valid:      true,
		}
		if err := sample.Validate(); err != nil {
			continue
		}
		sess.PushSample(sample)

		frameCount++
		if frameCount%ackEvery == 0 {
			if body, err := marshalSSE(wsAckMessage{Type: "ack", Count: frameCount}); err == nil {
				select {
				case out <- body:
				default:
				}
			}
		}
	}

	close(out)
	<-done
}

// createPushSession creates and starts a session fed by a PushSource,
// for a websocket client that connects before any /api/session/start
// call. It becomes the active session if none is set yet.
func (s *Server) createPushSession(r *http.Request, id string) (*session.Session, error) {
	var (
		sess *session.Session
		err  error
	)
	if s.database != nil {
		sess, err = s.registry.CreateWithPersistence(id, s.cfg, s.database, s.database, s.database)
	} else {
		sess, err = s.registry.Create(id, s.cfg)
	}
	if err != nil {
		return nil, err
	}
	if _, err := sess.Start(r.Context(), intake.NewPushSource(s.cfg.GetSampleQueueDepth())); err != nil {
		return nil, err
	}
	s.activeMu.Lock()
	if s.activeID == "" {
		s.activeID = id
	}
	s.activeMu.Unlock()
	s.putMeta(id, sessionMeta{StartedAt: time.Now()})
	return sess, nil
}

// handleTimeSyncWS implements the device/browser clock-offset probe:
// the client sends its local timestamp in milliseconds as an 8-byte
// big-endian frame, the server replies with that same value followed by
// its own timestamp, so the client can compute round-trip delay and
// offset (spec.md §6).
func (s *Server) handleTimeSyncWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if len(data) != 8 {
			continue
		}
		clientTsMs := binary.BigEndian.Uint64(data)
		serverTsMs := uint64(time.Now().UnixMilli())

		reply := make([]byte, 16)
		binary.BigEndian.PutUint64(reply[0:8], clientTsMs)
		binary.BigEndian.PutUint64(reply[8:16], serverTsMs)

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.BinaryMessage, reply); err != nil {
			return
		}
	}
}
