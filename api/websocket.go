package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/seenimoa/bmrs/internal/bmrs"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // any origin; restrict with a proxy if needed
	},
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// WSMessage is a server-to-client message on the download stream.
//
//	{"type":"window","data":{"index":0,"total":3,"window":"B1770[...]","rows":48}}
//	{"type":"done","data":{"run_id":"...","report":"B1770","windows":3,"rows":144}}
//	{"type":"error","error":"fetch B1770[...]: HTTP 500: ..."}
type WSMessage struct {
	Type  string      `json:"type"`
	ID    string      `json:"id,omitempty"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// WSRequest is a client-to-server message. Type "download" starts a
// download of Report over Start..End; "ping" is answered with "pong".
type WSRequest struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Report string `json:"report,omitempty"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
}

// WindowEvent reports one fetched window.
type WindowEvent struct {
	Index  int    `json:"index"`
	Total  int    `json:"total"`
	Window string `json:"window"`
	Rows   int    `json:"rows"`
}

// DoneEvent summarises a finished download.
type DoneEvent struct {
	RunID   string   `json:"run_id"`
	Report  string   `json:"report"`
	Windows int      `json:"windows"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// handleWebSocket upgrades the connection and streams per-window progress
// for downloads requested by the client.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	// The request deadline does not apply to the stream.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	send := make(chan WSMessage, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		wsWritePump(conn, send, log)
	}()

	var wg sync.WaitGroup
	s.wsReadPump(ctx, conn, send, &wg)

	cancel()
	wg.Wait()
	close(send)
	<-writerDone
}

// wsReadPump reads client requests until the connection fails or closes.
func (s *Server) wsReadPump(ctx context.Context, conn *websocket.Conn, send chan<- WSMessage, wg *sync.WaitGroup) {
	log := zerolog.Ctx(ctx)
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		var req WSRequest
		if err := json.Unmarshal(message, &req); err != nil {
			wsSend(ctx, send, WSMessage{Type: "error", Error: "invalid message: " + err.Error()})
			continue
		}

		switch req.Type {
		case "download":
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.wsDownload(ctx, req, send)
			}()
		case "ping":
			wsSend(ctx, send, WSMessage{Type: "pong", ID: req.ID})
		default:
			wsSend(ctx, send, WSMessage{Type: "error", ID: req.ID, Error: "unknown message type " + req.Type})
		}
	}
}

// wsDownload runs one download and streams its progress.
func (s *Server) wsDownload(ctx context.Context, req WSRequest, send chan<- WSMessage) {
	ctx = bmrs.WithProgress(ctx, func(p bmrs.Progress) {
		wsSend(ctx, send, WSMessage{Type: "window", ID: req.ID, Data: WindowEvent{
			Index:  p.Index,
			Total:  p.Total,
			Window: p.Window.String(),
			Rows:   p.Rows,
		}})
	})

	res, err := s.downloader.DownloadDates(ctx, req.Report, req.Start, req.End)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("report", req.Report).Msg("stream download failed")
		wsSend(ctx, send, WSMessage{Type: "error", ID: req.ID, Error: err.Error()})
		return
	}
	wsSend(ctx, send, WSMessage{Type: "done", ID: req.ID, Data: DoneEvent{
		RunID:   res.RunID,
		Report:  res.Report.Name,
		Windows: len(res.Windows),
		Rows:    res.Table.Len(),
		Columns: res.Table.Columns,
	}})
}

// wsSend queues msg unless the connection is going away.
func wsSend(ctx context.Context, send chan<- WSMessage, msg WSMessage) {
	select {
	case send <- msg:
	case <-ctx.Done():
	}
}

// wsWritePump writes queued messages to the connection and keeps it alive
// with pings. It returns when send is closed or a write fails.
func wsWritePump(conn *websocket.Conn, send <-chan WSMessage, log *zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				conn.Close()
				drain(send)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				drain(send)
				return
			}
		}
	}
}

// drain discards messages until send is closed so producers never block.
func drain(send <-chan WSMessage) {
	for range send {
	}
}
