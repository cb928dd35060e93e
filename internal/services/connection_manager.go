package services

import (
	"log"
	"sync"

	"slidehub/internal/models"
)

// ConnectionManager tracks all active editor WebSocket connections
type ConnectionManager struct {
	connections map[string]*models.EditorConnection
	mutex       sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*models.EditorConnection),
	}
}

// Add adds a new connection
func (cm *ConnectionManager) Add(conn *models.EditorConnection) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.connections[conn.ConnID] = conn
	log.Printf("✅ Connection added: %s (Total: %d)", conn.ConnID, len(cm.connections))
}

// Remove removes a connection and closes its channels
func (cm *ConnectionManager) Remove(connID string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	if conn, exists := cm.connections[connID]; exists {
		conn.MarkClosed()
		close(conn.WriteChan)
		close(conn.StopChan)
		delete(cm.connections, connID)
		log.Printf("❌ Connection removed: %s (Total: %d)", connID, len(cm.connections))
	}
}

// Count returns the number of active connections
func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.connections)
}

// CountByDocument returns how many connections are open for one document
func (cm *ConnectionManager) CountByDocument(documentID string) int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	count := 0
	for _, conn := range cm.connections {
		if conn.DocumentID == documentID {
			count++
		}
	}
	return count
}

// OpenDocuments returns how many distinct documents have at least one
// connection. Connections that have not joined a document yet don't count.
func (cm *ConnectionManager) OpenDocuments() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	docs := make(map[string]struct{})
	for _, conn := range cm.connections {
		if conn.DocumentID != "" {
			docs[conn.DocumentID] = struct{}{}
		}
	}
	return len(docs)
}
