package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/praisepoints/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and runs it as a Hub
// client scoped to the caller's owner account.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		logger.Debug("websocket connected", "owner_id", caller.OwnerID, "child_id", caller.ChildID)
		NewClient(hub, conn, caller.OwnerID, caller.ChildID).Run(r.Context())
	}
}
