package sse

import (
	"context"
	"sync"

	"ms-autobook/internal/models"
)

const clientBuffer = 16

// ResultEmitter fans processed auto-book results out to the owning user's
// open streams.
type ResultEmitter struct {
	// key: userID, value: one channel per open stream
	clients map[string][]chan models.ItemResult
	mu      sync.RWMutex
}

func NewResultEmitter() *ResultEmitter {
	return &ResultEmitter{clients: make(map[string][]chan models.ItemResult)}
}

// Subscribe registers a stream for userID. The channel is closed once ctx
// is done.
func (e *ResultEmitter) Subscribe(ctx context.Context, userID string) <-chan models.ItemResult {
	clientChan := make(chan models.ItemResult, clientBuffer)

	e.mu.Lock()
	e.clients[userID] = append(e.clients[userID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(userID, clientChan)
	}()

	return clientChan
}

// Emit delivers each result to its user's streams. Sends never block; a
// client whose buffer is full misses the result.
func (e *ResultEmitter) Emit(results []models.ItemResult) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	delivered := 0
	for _, r := range results {
		for _, clientChan := range e.clients[r.UserID] {
			select {
			case clientChan <- r:
				delivered++
			default:
			}
		}
	}
	return delivered
}

// Subscribers reports how many streams userID has open.
func (e *ResultEmitter) Subscribers(userID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[userID])
}

func (e *ResultEmitter) remove(userID string, clientChan chan models.ItemResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[userID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[userID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(e.clients[userID]) == 0 {
		delete(e.clients, userID)
	}
}
