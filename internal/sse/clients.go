// Package sse manages Server-Sent Events subscribers for live page reloads.
package sse

import "sync"

// Client is one connected browser, subscribed to a single page path.
type Client struct {
	Msg  chan string
	Path string
}

type Clients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewClients() *Clients {
	return &Clients{
		clients: make(map[*Client]bool),
	}
}

func (s *Clients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *Clients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, client)
	close(client.Msg)
}

// Broadcast sends msg to every subscriber of path. An empty path reaches
// all subscribers. Slow clients are skipped rather than blocked on.
func (s *Clients) Broadcast(path, msg string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if path != "" && client.Path != path {
			continue
		}
		select {
		case client.Msg <- msg:
		default:
		}
	}
}

func (s *Clients) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
