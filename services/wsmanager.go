package services

import (
	"sync"

	"github.com/gorilla/websocket"
)

// WSRoomManager - менеджер WebSocket-соединений по комнатам. Комната
// стены одна (community-wall), но менеджер комнат не знает.
type WSRoomManager struct {
	mu    sync.RWMutex
	rooms map[string]map[*websocket.Conn]int64 // conn -> userID
}

func NewWSRoomManager() *WSRoomManager {
	return &WSRoomManager{
		rooms: make(map[string]map[*websocket.Conn]int64),
	}
}

// Join подписывает соединение на комнату. Идемпотентно.
func (m *WSRoomManager) Join(room string, userID int64, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rooms[room] == nil {
		m.rooms[room] = make(map[*websocket.Conn]int64)
	}
	m.rooms[room][conn] = userID
}

// Leave убирает соединение из комнаты
func (m *WSRoomManager) Leave(room string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms[room], conn)
	if len(m.rooms[room]) == 0 {
		delete(m.rooms, room)
	}
}

// LeaveAll убирает соединение из всех комнат (закрытие сокета)
func (m *WSRoomManager) LeaveAll(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for room, conns := range m.rooms {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(m.rooms, room)
		}
	}
}

// Broadcast отправляет сообщение всем подписчикам комнаты.
// Ошибки записи игнорируем: доставка at-least-once, мертвое соединение
// отвалится на своем read loop.
func (m *WSRoomManager) Broadcast(room string, message []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for conn := range m.rooms[room] {
		_ = conn.WriteMessage(websocket.TextMessage, message)
	}
}

// BroadcastExcept отправляет сообщение всем, кроме отправителя
func (m *WSRoomManager) BroadcastExcept(room string, sender *websocket.Conn, message []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for conn := range m.rooms[room] {
		if conn == sender {
			continue
		}
		_ = conn.WriteMessage(websocket.TextMessage, message)
	}
}

// RoomSize - количество подписчиков комнаты
func (m *WSRoomManager) RoomSize(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[room])
}

var GlobalWSRoomManager = NewWSRoomManager()
