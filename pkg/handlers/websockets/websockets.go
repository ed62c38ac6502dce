package websockets

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/chris/stars-ledger/pkg/websockets"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler handles WebSocket connections.
// API Gateway connections are tracked in the connection store; local ones live in the Hub.
type Handler struct {
	connManager websockets.ConnectionManager
	hub         *websockets.Hub
}

// NewHandler creates a new Handler. hub may be nil when the local server is not used.
func NewHandler(connManager websockets.ConnectionManager, hub *websockets.Hub) *Handler {
	return &Handler{
		connManager: connManager,
		hub:         hub,
	}
}

// HandleConnect handles new client connections.
func (h *Handler) HandleConnect(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID
	slog.Log(ctx, slog.LevelInfo, "client connected", "connection_id", connectionID)

	if err := h.connManager.AddConnection(ctx, connectionID); err != nil {
		slog.Log(ctx, slog.LevelError, "failed to save connection id", "connection_id", connectionID, "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, err
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

// HandleDisconnect handles client disconnections.
func (h *Handler) HandleDisconnect(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID
	slog.Log(ctx, slog.LevelInfo, "client disconnected", "connection_id", connectionID)

	if err := h.connManager.RemoveConnection(ctx, connectionID); err != nil {
		slog.Log(ctx, slog.LevelError, "failed to delete connection id", "connection_id", connectionID, "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, err
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

// HandleDefault handles messages sent from a client. Clients only listen, so messages are just logged.
func (h *Handler) HandleDefault(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	slog.Log(ctx, slog.LevelDebug, "received client message", "connection_id", request.RequestContext.ConnectionID, "bytes", len(request.Body))
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

// Route dispatches an API Gateway WebSocket event by route key.
func (h *Handler) Route(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch request.RequestContext.RouteKey {
	case "$connect":
		return h.HandleConnect(ctx, request)
	case "$disconnect":
		return h.HandleDisconnect(ctx, request)
	default:
		return h.HandleDefault(ctx, request)
	}
}

var upgrader = websocket.Upgrader{
	// The local server is for development only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP streams balance updates to a client of the local development server.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		http.Error(w, "local websocket feed is disabled", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Log(r.Context(), slog.LevelWarn, "failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	connectionID := uuid.New().String()
	h.hub.Register(connectionID, conn)
	slog.Log(r.Context(), slog.LevelInfo, "local client connected", "connection_id", connectionID)

	defer func() {
		h.hub.Unregister(connectionID)
		slog.Log(r.Context(), slog.LevelInfo, "local client disconnected", "connection_id", connectionID)
	}()

	// Reading is the only way to notice the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Log(r.Context(), slog.LevelWarn, "unexpected close error", "connection_id", connectionID, "error", err)
			}
			return
		}
	}
}
