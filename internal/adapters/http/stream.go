package httpadapter

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"redline/internal/domain"
	"redline/internal/ports"
)

// Per-event write deadline. The sink is fire-and-forget: a consumer slower
// than this loses events but cannot stall the analysis run.
const streamWriteTimeout = 5 * time.Second

// streamDeepAnalyze upgrades to a websocket, reads an optional request
// payload ({"severity_weights": {...}}) as the first client message, then
// streams ordered progress events while the run executes. The terminal
// event is either "complete" or "error", after which the socket closes.
func (s *Server) streamDeepAnalyze(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("stream: accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	weights := readStreamWeights(ctx, conn)

	sink := ports.SinkFunc(func(e ports.ProgressEvent) {
		writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
		defer cancel()
		if err := wsjson.Write(writeCtx, conn, e); err != nil {
			// Fire-and-forget: a dead or slow consumer never fails the run.
			log.Printf("stream: event dropped: %v", err)
		}
	})

	if _, err := s.analysis.RunStreaming(ctx, submissionID, weights, sink); err != nil {
		msg := "internal error"
		if errors.Is(err, ports.ErrNotFound) {
			msg = err.Error()
		} else {
			log.Printf("stream: run failed: %v", err)
		}
		sink.Emit(ports.ProgressEvent{Status: "error", Message: msg})
		conn.Close(websocket.StatusInternalError, "analysis failed")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "complete")
}

// readStreamWeights reads the first client message, falling back to the
// balanced preset if the client sends nothing usable within the deadline.
func readStreamWeights(ctx context.Context, conn *websocket.Conn) domain.SeverityWeights {
	readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var body struct {
		SeverityWeights *domain.SeverityWeights `json:"severity_weights"`
	}
	if err := wsjson.Read(readCtx, conn, &body); err != nil || body.SeverityWeights == nil {
		return domain.BalancedWeights()
	}
	return body.SeverityWeights.Clamp()
}
