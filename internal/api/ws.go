package api

import (
	"encoding/json"
	"net/http"

	"cakeshop-notifier/internal/models"
	"cakeshop-notifier/internal/realtime"
)

var connectedMessages = map[realtime.PoolName]string{
	realtime.PoolDelivery: "Connected to delivery notifications",
	realtime.PoolAdmin:    "Connected to admin notifications",
}

// handleWS authenticates from the token query parameter, since browsers
// cannot set headers on a websocket handshake, then holds the connection
// open until the peer leaves.
func (s *Server) handleWS(pool realtime.PoolName, role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.deps.Verifier.VerifyRole(r.URL.Query().Get("token"), role)
		if err != nil {
			s.logger.Warn("websocket authentication rejected", map[string]interface{}{
				"pool":  string(pool),
				"error": err.Error(),
			})
			writeError(w, err)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("websocket upgrade failed", map[string]interface{}{"pool": string(pool), "error": err.Error()})
			return
		}

		sock := realtime.NewWSSocket(conn, s.wsOpts)
		s.deps.Registry.Pool(pool).Register(claims.UserID, sock)

		if data, err := json.Marshal(models.NewConnectedNotification(connectedMessages[pool])); err == nil {
			_ = sock.Send(data)
		}

		sock.Run()
	}
}
