package services

import (
	"log"
	"sync"
	"time"

	"wall/models"

	"github.com/gorilla/websocket"
)

// EventHandler - обработчик события реального времени. Получает
// неизменяемое значение события; обязан переживать события о сущностях,
// которых локальный стор еще не видел.
type EventHandler func(event string, payload interface{})

// RealtimeChannel - транспорт pub/sub комнаты стены. Доставка
// at-least-once, порядок между клиентами не гарантируется.
type RealtimeChannel interface {
	// Join подписывает клиента на комнату. Идемпотентно.
	Join(room string) error
	// Publish отправляет событие в комнату. Fire-and-forget: publisher
	// не ждет подтверждения, свое состояние он уже обновил.
	Publish(event string, payload interface{})
	// Subscribe регистрирует обработчик вида события
	Subscribe(event string, handler EventHandler)
	Close() error
}

// --- LocalChannel: внутрипроцессный транспорт (тесты, один процесс) ---

// LocalHub связывает несколько LocalChannel в общие комнаты
type LocalHub struct {
	mu    sync.Mutex
	rooms map[string][]*LocalChannel
}

func NewLocalHub() *LocalHub {
	return &LocalHub{rooms: make(map[string][]*LocalChannel)}
}

// Channel создает нового клиента хаба
func (h *LocalHub) Channel() *LocalChannel {
	return &LocalChannel{
		hub:      h,
		handlers: make(map[string][]EventHandler),
		joined:   make(map[string]bool),
	}
}

func (h *LocalHub) broadcast(sender *LocalChannel, room, event string, payload interface{}) {
	h.mu.Lock()
	subscribers := append([]*LocalChannel{}, h.rooms[room]...)
	h.mu.Unlock()

	for _, ch := range subscribers {
		if ch == sender {
			continue
		}
		ch.dispatch(event, payload)
	}
}

type LocalChannel struct {
	hub      *LocalHub
	mu       sync.Mutex
	handlers map[string][]EventHandler
	joined   map[string]bool
}

func (c *LocalChannel) Join(room string) error {
	c.mu.Lock()
	already := c.joined[room]
	c.joined[room] = true
	c.mu.Unlock()
	if already {
		return nil
	}

	c.hub.mu.Lock()
	c.hub.rooms[room] = append(c.hub.rooms[room], c)
	c.hub.mu.Unlock()
	return nil
}

func (c *LocalChannel) Publish(event string, payload interface{}) {
	c.mu.Lock()
	rooms := make([]string, 0, len(c.joined))
	for room := range c.joined {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()

	for _, room := range rooms {
		c.hub.broadcast(c, room, event, payload)
	}
}

func (c *LocalChannel) Subscribe(event string, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

func (c *LocalChannel) Close() error {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	for room, subs := range c.hub.rooms {
		for i, ch := range subs {
			if ch == c {
				c.hub.rooms[room] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (c *LocalChannel) dispatch(event string, payload interface{}) {
	c.mu.Lock()
	handlers := append([]EventHandler{}, c.handlers[event]...)
	c.mu.Unlock()
	for _, h := range handlers {
		h(event, payload)
	}
}

// --- WSChannel: транспорт поверх WebSocket сервера стены ---

// joinAction - сообщение подписки на комнату
type joinAction struct {
	Action string `json:"action"`
}

// WSChannel держит соединение с WS-эндпоинтом стены. При обрыве
// переподключается и заново входит в комнаты; события, пропущенные за
// время обрыва, не доигрываются.
type WSChannel struct {
	url   string
	token string

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string][]EventHandler
	joined   map[string]bool
	closed   bool
}

func NewWSChannel(url, token string) (*WSChannel, error) {
	c := &WSChannel{
		url:      url,
		token:    token,
		handlers: make(map[string][]EventHandler),
		joined:   make(map[string]bool),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

func (c *WSChannel) connect() error {
	headers := map[string][]string{
		"Authorization": {"Bearer " + c.token},
	}
	conn, _, err := websocket.DefaultDialer.Dial(c.url, headers)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	rooms := make([]string, 0, len(c.joined))
	for room := range c.joined {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()

	// Заново входим в комнаты после переподключения
	for _, room := range rooms {
		c.sendJoin(room)
	}
	return nil
}

func (c *WSChannel) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		if conn == nil {
			if err := c.connect(); err != nil {
				time.Sleep(time.Second)
				continue
			}
			continue
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}
			log.Println("WS channel read error, reconnecting:", err)
			continue
		}

		evt, payload, err := models.DecodeWallEvent(msg)
		if err != nil {
			// Служебные сообщения и неизвестные события пропускаем
			continue
		}
		c.dispatch(evt.Event, payload)
	}
}

func (c *WSChannel) dispatch(event string, payload interface{}) {
	c.mu.Lock()
	handlers := append([]EventHandler{}, c.handlers[event]...)
	c.mu.Unlock()
	for _, h := range handlers {
		h(event, payload)
	}
}

func (c *WSChannel) sendJoin(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	_ = c.conn.WriteJSON(joinAction{Action: "join-" + room})
}

func (c *WSChannel) Join(room string) error {
	c.mu.Lock()
	already := c.joined[room]
	c.joined[room] = true
	c.mu.Unlock()
	if already {
		return nil
	}
	c.sendJoin(room)
	return nil
}

func (c *WSChannel) Publish(event string, payload interface{}) {
	data, err := models.EncodeWallEvent(event, payload)
	if err != nil {
		log.Println("Failed to encode wall event:", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		// Fire-and-forget: при обрыве событие теряется, сервер все равно
		// разошлет подтвержденное состояние своим путем
		return
	}
	_ = c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WSChannel) Subscribe(event string, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

func (c *WSChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
