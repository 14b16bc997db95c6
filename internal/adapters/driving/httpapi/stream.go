package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/logger"
)

// maxChatBody bounds the size of a chat request body.
const maxChatBody = 64 << 10

// chatRequest is the body of the chat endpoints.
type chatRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type tokenData struct {
	Token string `json:"token"`
}

type noInformationData struct {
	Message string `json:"message"`
}

// verdictData is the payload of the verification event.
type verdictData struct {
	Verified   bool    `json:"verified"`
	Reason     string  `json:"reason"`
	Correction *string `json:"correction"`
}

// handleChatStream serves POST /api/chat/stream over the whole vault.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	s.streamChat(w, r, nil)
}

// handleDocumentChatStream serves POST /api/chat/documents/{id}/stream.
func (s *Server) handleDocumentChatStream(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	s.streamChat(w, r, &id)
}

// streamChat answers with server-sent events: one data event per token,
// then an event named verification. When no evidence was found a
// no_information event replaces the tokens.
// Errors before the first event are plain JSON responses.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, documentID *int64) {
	if s.ports.Chat == nil {
		respondError(w, fmt.Errorf("chat: %w", domain.ErrLLMUnavailable))
		return
	}

	var body chatRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxChatBody))
	if err := dec.Decode(&body); err != nil {
		respondError(w, fmt.Errorf("%w: decode body: %v", domain.ErrInvalidInput, err))
		return
	}
	if body.Query == "" {
		respondError(w, fmt.Errorf("%w: query is required", domain.ErrInvalidInput))
		return
	}

	rc := http.NewResponseController(w)
	start := time.Now()
	events, err := s.ports.Chat.Ask(r.Context(), domain.ChatRequest{
		Query:      body.Query,
		DocumentID: documentID,
		TopK:       body.TopK,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sse := &eventWriter{w: w, rc: rc}
	firstToken := true
	for ev := range events {
		switch ev.Type {
		case domain.ChatEventToken:
			if firstToken {
				logger.Elapsed("TTFT", start)
				firstToken = false
			}
			sse.send("", tokenData{Token: ev.Token})
		case domain.ChatEventNoInformation:
			sse.send(string(domain.ChatEventNoInformation), noInformationData{Message: ev.Message})
		case domain.ChatEventVerification:
			v := verdictData{}
			if ev.Verdict != nil {
				v = verdictData{Verified: ev.Verdict.Valid, Reason: ev.Verdict.Reason, Correction: ev.Verdict.Correction}
			}
			sse.send(string(domain.ChatEventVerification), v)
		}
	}
	if sse.err != nil {
		logger.Debug("Chat stream write failed: %v", sse.err)
	}
	logger.Elapsed("Chat stream", start)
}

// eventWriter frames server-sent events. After the first write error
// further events are dropped, so the chat stream is still drained.
type eventWriter struct {
	w   io.Writer
	rc  *http.ResponseController
	err error
}

func (e *eventWriter) send(event string, v any) {
	if e.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		e.err = err
		return
	}
	if event != "" {
		if _, e.err = fmt.Fprintf(e.w, "event: %s\n", event); e.err != nil {
			return
		}
	}
	if _, e.err = fmt.Fprintf(e.w, "data: %s\n\n", data); e.err != nil {
		return
	}
	if err := e.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		e.err = err
	}
}
