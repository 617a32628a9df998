package inmemory

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrConnNotFound = errors.New("connection not found")

type connKey struct {
	roomId string
	userId string
}

// Repo tracks live websocket connections per room member. A member has at
// most one connection; reconnecting replaces the previous one.
type Repo struct {
	mu     sync.Mutex
	byKey  map[connKey]*websocket.Conn
	byConn map[*websocket.Conn]connKey
	logger *slog.Logger
}

func NewRepo(logger *slog.Logger) *Repo {
	return &Repo{
		byKey:  make(map[connKey]*websocket.Conn),
		byConn: make(map[*websocket.Conn]connKey),
		logger: logger,
	}
}

func (r *Repo) Add(conn *websocket.Conn, roomId, userId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := connKey{roomId: roomId, userId: userId}
	if old, ok := r.byKey[key]; ok {
		delete(r.byConn, old)
		old.Close()
	}

	r.byKey[key] = conn
	r.byConn[conn] = key
}

func (r *Repo) RemoveByConn(conn *websocket.Conn) (roomId, userId string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.byConn[conn]
	if !ok {
		return "", "", ErrConnNotFound
	}

	delete(r.byConn, conn)
	delete(r.byKey, key)

	return key.roomId, key.userId, nil
}

func (r *Repo) RemoveByMember(roomId, userId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := connKey{roomId: roomId, userId: userId}
	if conn, ok := r.byKey[key]; ok {
		delete(r.byConn, conn)
		delete(r.byKey, key)
		conn.Close()
	}
}

// Broadcast writes payload as JSON to every live connection in the room.
// Connections that fail to accept the write are dropped.
func (r *Repo) Broadcast(roomId string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, conn := range r.byKey {
		if key.roomId != roomId {
			continue
		}

		if err := conn.WriteJSON(payload); err != nil {
			r.logger.Debug("dropping connection after failed write", "room_id", roomId, "user_id", key.userId, "error", err)
			delete(r.byConn, conn)
			delete(r.byKey, key)
			conn.Close()
		}
	}

	return nil
}
