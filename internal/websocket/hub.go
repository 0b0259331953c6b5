package websocket

import (
	"encoding/json"

	"github.com/isdelr/bookshare-be/internal/models"
	"github.com/rs/zerolog/log"
)

// delivery is a message addressed to every client of one account.
type delivery struct {
	account string
	message []byte
}

// reply is a message for a single client.
type reply struct {
	client  *Client
	message []byte
}

// Hub maintains the set of active clients, grouped by the account they
// authenticated as, and routes notifications to them.
type Hub struct {
	// Connected clients per account.
	accounts map[string]map[*Client]bool

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	deliver chan delivery
	replies chan reply
	done    chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		accounts:   make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		deliver:    make(chan delivery, 64),
		replies:    make(chan reply, 16),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			if h.accounts[client.Account] == nil {
				h.accounts[client.Account] = make(map[*Client]bool)
			}
			h.accounts[client.Account][client] = true
			log.Info().Str("account", client.Account).Int("account_clients", len(h.accounts[client.Account])).Msg("Client connected")
		case client := <-h.Unregister:
			if h.remove(client) {
				log.Info().Str("account", client.Account).Msg("Client disconnected")
			}
		case d := <-h.deliver:
			for client := range h.accounts[d.account] {
				select {
				case client.Send <- d.message:
				default:
					// Slow consumer.
					h.remove(client)
				}
			}
		case rp := <-h.replies:
			if h.accounts[rp.client.Account][rp.client] {
				select {
				case rp.client.Send <- rp.message:
				default:
					h.remove(rp.client)
				}
			}
		case <-h.done:
			for _, clients := range h.accounts {
				for client := range clients {
					close(client.Send)
				}
			}
			h.accounts = make(map[string]map[*Client]bool)
			return
		}
	}
}

// Stop terminates Run and closes every client's send channel.
func (h *Hub) Stop() {
	close(h.done)
}

// Notify pushes event to every live client of account. It never blocks
// once the hub has stopped.
func (h *Hub) Notify(account string, event models.Event) {
	message, err := json.Marshal(NewEventMessage(event))
	if err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to encode event for websocket")
		return
	}
	select {
	case h.deliver <- delivery{account: account, message: message}:
	case <-h.done:
	}
}

// Reply queues message for client alone. Messages for clients that already
// left are dropped.
func (h *Hub) Reply(client *Client, message []byte) {
	select {
	case h.replies <- reply{client: client, message: message}:
	case <-h.done:
	}
}

// Join registers client unless the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters client unless the hub has stopped.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) bool {
	clients, ok := h.accounts[client.Account]
	if !ok || !clients[client] {
		return false
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.accounts, client.Account)
	}
	return true
}
