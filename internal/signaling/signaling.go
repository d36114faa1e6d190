package signaling

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/wsxfer/internal/transport"
	"github.com/1ureka/wsxfer/internal/util"
)

// EstablishAsOfferer upgrades an authenticated WebSocket to a WebRTC Peer
// from the side that speaks first:
//  1. Create a Peer with the given ICE servers
//  2. Trickle local candidates over ws
//  3. Send the offer and apply the answer
//  4. Wait for the DataChannel to open
//
// ws is closed before returning, whatever the outcome.
func EstablishAsOfferer(ctx context.Context, ws *websocket.Conn, iceServers []string) (*transport.Peer, error) {
	return establish(ctx, ws, iceServers, true)
}

// EstablishAsAnswerer is the counterpart of EstablishAsOfferer: it waits for
// the offer, answers it and returns once the DataChannel is open. ws is
// closed before returning.
func EstablishAsAnswerer(ctx context.Context, ws *websocket.Conn, iceServers []string) (*transport.Peer, error) {
	return establish(ctx, ws, iceServers, false)
}

// readyGrace is how long a Peer may still come up after ws has failed.
const readyGrace = 5 * time.Second

func establish(ctx context.Context, ws *websocket.Conn, iceServers []string, offerer bool) (*transport.Peer, error) {
	defer ws.Close()

	// ctx bounds the handshake only; the Peer lives until Close.
	peer, err := transport.NewPeer(context.WithoutCancel(ctx), iceServers)
	if err != nil {
		return nil, fmt.Errorf("create peer: %w", err)
	}

	s := &sender{peer: peer, conn: ws}
	r := &receiver{peer: peer, conn: ws, sender: s}
	s.trickle()

	// Exits when ws is closed (deferred above).
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.watch()
	}()

	if offerer {
		if err := s.sendOffer(); err != nil {
			peer.Close()
			return nil, fmt.Errorf("send offer: %w", err)
		}
	}

	select {
	case <-peer.Ready():
		util.LogDebug("WebRTC DataChannel established, closing WS")
		return peer, nil

	case err := <-errCh:
		// The remote may close ws as soon as its own side is ready.
		select {
		case <-peer.Ready():
			return peer, nil
		case <-time.After(readyGrace):
		case <-ctx.Done():
		}
		peer.Close()
		return nil, fmt.Errorf("signaling failed: %w", err)

	case <-ctx.Done():
		peer.Close()
		return nil, ctx.Err()
	}
}
