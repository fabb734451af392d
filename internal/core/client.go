package core

// Client is one connected signaling peer as seen by the core layer.
// ConnID identifies the connection; Address identifies the human.
type Client struct {
	ConnID   string
	Address  SignalingAddress
	Username string
	Events   chan *Event
}

// NewClient constructs a client with an initialized event channel.
func NewClient(connID string, addr SignalingAddress, username string) *Client {
	if username == "" {
		username = addr.String()
	}
	return &Client{
		ConnID:   connID,
		Address:  addr,
		Username: username,
		Events:   make(chan *Event, 16),
	}
}

// push delivers an event without blocking. Slow consumers drop events.
func (c *Client) push(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
