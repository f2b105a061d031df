package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"garbageapi/internal/config"
	"garbageapi/internal/dto"
	"garbageapi/internal/logger"
	"garbageapi/internal/service"
	"garbageapi/internal/service/imageio"
	hub "garbageapi/internal/service/websocket"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var errMissingImage = errors.New("missing image field")

// pongWait is how long a connection may stay silent while no frame is being processed.
// Handlers read it when they are built.
var pongWait = hub.PongWait

// StreamWebsocketHandler serves the realtime stream. Each "frame" event is classified
// and answered with a "classification_result" event on the same connection, in order.
func StreamWebsocketHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	wait := pongWait
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		session, ok := manager.GetWebsocketService().Register(connection)
		if !ok {
			connection.Close()
			return
		}
		defer manager.GetWebsocketService().Unregister(session)

		if cfg.MaxContentLength > 0 {
			connection.SetReadLimit(cfg.MaxContentLength)
		}
		connection.SetReadDeadline(time.Now().Add(wait))
		connection.SetPongHandler(func(string) error {
			return connection.SetReadDeadline(time.Now().Add(wait))
		})

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go keepAlive(ctx, session)

		for {
			_, message, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Stream client %s disconnected normally", session.ID)
				} else {
					logger.Warning("Stream client %s disconnected: %v", session.ID, err)
				}
				return
			}
			handleStreamMessage(ctx, manager, session, message, logger)

			// pongs are not read while a frame is processed, so the wait starts after it
			connection.SetReadDeadline(time.Now().Add(wait))
		}
	}
}

func keepAlive(ctx context.Context, session *hub.Session) {
	ticker := time.NewTicker(hub.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := session.Ping(); err != nil {
				return
			}
		}
	}
}

func handleStreamMessage(ctx context.Context, manager *service.Manager, session *hub.Session, message []byte, logger *logger.Logger) {
	var msg dto.StreamMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		emitResult(session, frameError(err), logger)
		return
	}

	switch msg.Event {
	case dto.EventFrame:
		emitResult(session, processFrame(ctx, manager, msg.Data), logger)
	default:
		logger.Warning("Ignoring unknown stream event %q from %s", msg.Event, session.ID)
	}
}

// processFrame never fails: every error becomes an error payload for the client.
func processFrame(ctx context.Context, manager *service.Manager, data json.RawMessage) (result interface{}) {
	defer func() {
		if r := recover(); r != nil {
			result = frameError(fmt.Errorf("%v", r))
		}
	}()

	var frame dto.FramePayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &frame); err != nil {
			return frameError(err)
		}
	}
	if frame.Image == nil {
		return frameError(errMissingImage)
	}

	raw, err := imageio.DecodeFrame(*frame.Image)
	if err != nil {
		return frameError(err)
	}

	img, err := imageio.Decode(raw)
	if err != nil {
		return dto.ErrorPayload{Error: "Could not decode image"}
	}
	defer img.Close()

	detections, err := manager.GetClassifier().Classify(ctx, img)
	if err != nil {
		return dto.ErrorPayload{Error: err.Error()}
	}
	return detections
}

func frameError(err error) dto.ErrorPayload {
	return dto.ErrorPayload{Error: "Error processing frame: " + err.Error()}
}

func emitResult(session *hub.Session, payload interface{}, logger *logger.Logger) {
	if err := session.Emit(dto.EventClassificationResult, payload); err != nil {
		logger.Error("Error sending result to %s: %v", session.ID, err)
	}
}
