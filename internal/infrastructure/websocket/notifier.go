package websocket

import (
	"context"

	"auction-lifecycle/internal/domain"
)

// WebSocketNotifier adapts a ConnectionManager to the delivery interfaces
// used by the event listener.
type WebSocketNotifier struct {
	connManager domain.ConnectionManager
}

func NewWebSocketNotifier(connManager domain.ConnectionManager) *WebSocketNotifier {
	return &WebSocketNotifier{connManager: connManager}
}

func (n *WebSocketNotifier) NotifyUser(ctx context.Context, userID string, message interface{}) error {
	return n.connManager.NotifyUser(userID, message)
}

func (n *WebSocketNotifier) BroadcastToListing(ctx context.Context, listingID string, message interface{}) error {
	return n.connManager.BroadcastToListing(listingID, message)
}

var (
	_ domain.UserNotifier       = (*WebSocketNotifier)(nil)
	_ domain.ListingBroadcaster = (*WebSocketNotifier)(nil)
)
