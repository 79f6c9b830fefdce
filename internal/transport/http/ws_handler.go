package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"testgen-session/internal/app"
	"testgen-session/internal/infra/api"
)

// EngineFactory builds a fresh engine for one connection.
type EngineFactory func() *app.Engine

// WSHandler bridges a renderer to one test-taking flow per websocket
// connection: connecting enters the flow, disconnecting leaves it.
type WSHandler struct {
	newEngine EngineFactory
	upgrader  websocket.Upgrader
}

func NewWSHandler(newEngine EngineFactory) *WSHandler {
	return &WSHandler{
		newEngine: newEngine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID *int `json:"questionId"`
	Option     *int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into an engine.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	studentID, errStudent := strconv.ParseInt(r.URL.Query().Get("studentId"), 10, 64)
	testID, errTest := strconv.ParseInt(r.URL.Query().Get("testId"), 10, 64)
	if errStudent != nil || errTest != nil {
		http.Error(w, "missing or invalid studentId or testId", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if token := requestToken(r); token != "" {
		ctx = api.WithToken(ctx, token)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	engine := h.newEngine()
	updates, cancel := engine.Store().Subscribe()
	defer cancel()
	defer engine.Leave()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		failed := false
		for msg := range send {
			if failed {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				failed = true
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		reviewed := false
		for {
			select {
			case _, ok := <-updates:
				if !ok {
					return
				}
				view := engine.View()
				msgs := []outboundMessage[any]{{Type: "state", Payload: view}}
				if view.Finished && !reviewed {
					if review, err := engine.Review(); err == nil {
						reviewed = true
						msgs = append(msgs, outboundMessage[any]{Type: "finished", Payload: review})
					}
				}
				for _, msg := range msgs {
					select {
					case send <- msg:
					case <-closeSignals:
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if _, err := engine.Enter(ctx, studentID, testID); err != nil {
		send <- errorMessage(err.Error())
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.handle(ctx, engine, studentID, testID, inbound, send)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(ctx context.Context, engine *app.Engine, studentID, testID int64, inbound inboundMessage, send chan<- outboundMessage[any]) {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Option == nil {
			send <- errorMessage("invalid answer payload")
			return
		}
		var err error
		if payload.QuestionID != nil {
			_, err = engine.RecordAnswer(ctx, *payload.QuestionID, *payload.Option)
		} else {
			_, err = engine.AnswerCurrent(ctx, *payload.Option)
		}
		if err != nil {
			send <- errorMessage(err.Error())
		}
	case "next":
		engine.Navigator().Next()
		send <- outboundMessage[any]{Type: "state", Payload: engine.View()}
	case "previous":
		engine.Navigator().Previous()
		send <- outboundMessage[any]{Type: "state", Payload: engine.View()}
	case "complete":
		if _, err := engine.Complete(ctx); err != nil {
			send <- errorMessage(err.Error())
		}
	case "history":
		sessions, err := engine.History(ctx, studentID, testID)
		if err != nil {
			send <- errorMessage(err.Error())
			return
		}
		send <- outboundMessage[any]{Type: "history", Payload: sessions}
	case "results":
		sessions, err := engine.TestResults(ctx, testID)
		if err != nil {
			send <- errorMessage(err.Error())
			return
		}
		send <- outboundMessage[any]{Type: "results", Payload: sessions}
	default:
		send <- errorMessage("unsupported message type")
	}
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

func requestToken(r *http.Request) string {
	if token := r.Header.Get("Authorization"); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}
