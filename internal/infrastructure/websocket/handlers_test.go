package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"auction-lifecycle/internal/domain"
	"auction-lifecycle/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStates map[int64]domain.ListingStatus

func (s staticStates) SetListingStatus(ctx context.Context, id int64, status domain.ListingStatus) error {
	s[id] = status
	return nil
}

func (s staticStates) GetListingStatus(ctx context.Context, id int64) (domain.ListingStatus, error) {
	status, ok := s[id]
	if !ok {
		return domain.ListingProgrammed, errors.New("not cached")
	}
	return status, nil
}

func newServer(t *testing.T, states domain.ListingStateCache) (*httptest.Server, *ConnectionManager) {
	cm := NewConnectionManager(logger.NewNop())
	r := mux.NewRouter()
	NewWebSocketHandler(states, cm, logger.NewNop()).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, cm
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestHandleConnection_Rejections(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t, staticStates{7: domain.ListingFinished})

	for _, tc := range []struct {
		name string
		path string
		code int
	}{
		{"bad listing id", "/ws/listings/abc?user_id=1", http.StatusBadRequest},
		{"missing user", "/ws/listings/3", http.StatusBadRequest},
		{"terminal listing", "/ws/listings/7?user_id=1", http.StatusForbidden},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, tc.path), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tc.code, resp.StatusCode)
		})
	}
}

func TestHandleConnection_PingAndBroadcast(t *testing.T) {
	t.Parallel()
	srv, cm := newServer(t, staticStates{3: domain.ListingActive})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/listings/3?user_id=9"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var reply map[string]string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "pong", reply["type"])

	require.Eventually(t, func() bool {
		return len(cm.GetConnectionsForListing("3")) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, cm.BroadcastToListing("3", map[string]string{"type": "auction_closed"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "auction_closed", reply["type"])
}

func TestHandleConnection_UnknownStatusAccepted(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t, staticStates{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/listings/42?user_id=1"), nil)
	require.NoError(t, err)
	_ = conn.Close()
}
