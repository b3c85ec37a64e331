package http

import (
	"encoding/json"
	"net/http"

	"color-quiz-service/internal/app"
	"color-quiz-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WSHandler struct {
	service  *app.AttemptService
	upgrader websocket.Upgrader
	validate *validator.Validate
	logger   *zap.Logger
}

func NewWSHandler(service *app.AttemptService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		validate: newValidator(),
		logger:   logger,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades HTTP requests to websockets and drives one attempt over the connection.
// Every connection on the same attempt receives its progress updates.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	attemptID := r.URL.Query().Get("attemptId")
	if attemptID == "" {
		http.Error(w, "missing attemptId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Watch(r.Context(), attemptID)
	if err != nil {
		_, body := errorResponse(err)
		_ = conn.WriteJSON(outboundMessage[errorBody]{Type: "error", Payload: body})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer: gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write failed", zap.String("attemptId", attemptID), zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "progress", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		for _, msg := range h.handle(r, attemptID, inbound) {
			select {
			case send <- msg:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(r *http.Request, attemptID string, inbound inboundMessage) []outboundMessage[any] {
	ctx := r.Context()
	switch inbound.Type {
	case "answer":
		var req answerRequest
		if err := h.decode(inbound.Payload, &req); err != nil {
			return h.fail(err)
		}
		answer, err := h.service.RecordAnswer(ctx, attemptID, app.Submission{
			QuestionID:  req.QuestionID,
			QType:       req.QType,
			LikertValue: req.LikertValue,
			OptionID:    req.OptionID,
			Ranking:     req.Ranked,
		})
		if err != nil {
			return h.fail(err)
		}
		return []outboundMessage[any]{{Type: "answerRecorded", Payload: answer}}
	case "rank":
		var req rankingRequest
		if err := h.decode(inbound.Payload, &req); err != nil {
			return h.fail(err)
		}
		answer, err := h.service.RecordRanking(ctx, attemptID, req.QuestionID, req.Ranked)
		if err != nil {
			return h.fail(err)
		}
		return []outboundMessage[any]{{Type: "answerRecorded", Payload: answer}}
	case "finish":
		res, err := h.service.Finish(ctx, attemptID)
		if err != nil {
			return h.fail(err)
		}
		return []outboundMessage[any]{{Type: "result", Payload: res}}
	}
	return h.fail(domain.Invalid("type", "unsupported message type %q", inbound.Type))
}

func (h *WSHandler) decode(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.Invalid("payload", "malformed payload")
	}
	return validateStruct(h.validate, dst)
}

func (h *WSHandler) fail(err error) []outboundMessage[any] {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("ws request failed", zap.Error(err))
	}
	return []outboundMessage[any]{{Type: "error", Payload: body}}
}
