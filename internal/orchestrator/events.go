package orchestrator

import (
    "encoding/json"
    "sync"
    "time"
)

// Event is a generic SSE payload wrapper.
type Event struct {
    Event   string    `json:"event"`
    UserID  string    `json:"user_id"`
    At      time.Time `json:"at"`
    Payload any       `json:"payload,omitempty"`
}

type subscriber chan []byte

// Hub fans events out to every open stream of a user. Slow subscribers miss
// events rather than block publishers.
type Hub struct {
    mu   sync.RWMutex
    subs map[string]map[subscriber]struct{} // userID -> set of subscribers
}

func NewHub() *Hub { return &Hub{subs: map[string]map[subscriber]struct{}{}} }

func (h *Hub) Subscribe(userID string) (<-chan []byte, func()) {
    ch := make(subscriber, 16)
    h.mu.Lock()
    set := h.subs[userID]
    if set == nil { set = map[subscriber]struct{}{}; h.subs[userID] = set }
    set[ch] = struct{}{}
    h.mu.Unlock()
    var once sync.Once
    unsubscribe := func() {
        once.Do(func() {
            h.mu.Lock()
            if set, ok := h.subs[userID]; ok {
                delete(set, ch)
                if len(set) == 0 { delete(h.subs, userID) }
            }
            close(ch)
            h.mu.Unlock()
        })
    }
    return ch, unsubscribe
}

func (h *Hub) Publish(userID string, ev Event) {
    if ev.UserID == "" { ev.UserID = userID }
    if ev.At.IsZero() { ev.At = time.Now().UTC() }
    b, err := json.Marshal(ev)
    if err != nil { return }
    h.mu.RLock()
    for ch := range h.subs[userID] {
        // non-blocking send
        select { case ch <- b: default: }
    }
    h.mu.RUnlock()
}

// Notify lets the task service publish change events through the hub.
func (h *Hub) Notify(userID, event string, payload any) {
    h.Publish(userID, Event{Event: event, Payload: payload})
}

// Subscribers reports how many streams are open for userID.
func (h *Hub) Subscribers(userID string) int {
    h.mu.RLock()
    defer h.mu.RUnlock()
    return len(h.subs[userID])
}
