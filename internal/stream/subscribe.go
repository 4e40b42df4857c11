package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// State returns the current push channel state.
func (c *Client) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(next ConnState) {
	c.mu.Lock()
	prev := c.state
	if prev == next {
		c.mu.Unlock()
		return
	}
	if !prev.CanTransition(next) {
		c.logger.Debug("unexpected channel transition", "from", prev, "to", next)
	}
	c.state = next
	hook := c.onStateChange
	c.mu.Unlock()

	c.metrics.SetState(next.String(), AllConnStates())
	if hook != nil {
		hook(next)
	}
}

// Subscribe opens the server-sent event channel and returns the envelopes it
// delivers. When the connection fails or the server closes it, the channel
// is torn down and reopened once after the fixed reconnect interval.
// Envelopes sent while disconnected are lost; after each successful reopen a
// MessageTypeReconnected envelope is delivered so the caller can re-fetch
// full state.
//
// Both channels are closed when ctx is canceled or the maximum number of
// consecutive failed attempts is exceeded (the error is sent first).
func (c *Client) Subscribe(ctx context.Context) (<-chan *Envelope, <-chan error) {
	envCh := make(chan *Envelope, 100)
	errCh := make(chan error, 1)

	go c.subscriptionLoop(ctx, envCh, errCh)

	return envCh, errCh
}

// subscriptionLoop handles the main subscription loop with reconnection logic.
func (c *Client) subscriptionLoop(ctx context.Context, envCh chan<- *Envelope, errCh chan<- error) {
	defer close(envCh)
	defer close(errCh)
	defer c.setState(StateDisconnected)

	failures := 0
	opened := false

	for {
		if ctx.Err() != nil {
			return
		}

		c.setState(StateConnecting)
		err := c.streamEvents(ctx, opened, func() {
			failures = 0
			opened = true
		}, envCh)
		if ctx.Err() != nil {
			return
		}

		c.setState(StateError)
		kind := ErrorKind(err)
		c.metrics.IncError(kind)
		c.logger.Warn("event stream failed, reconnecting", "error", err, "kind", kind, "in", c.reconnectInterval)

		failures++
		if c.maxReconnectAttempts > 0 && failures >= c.maxReconnectAttempts {
			errCh <- fmt.Errorf("max reconnection attempts (%d) exceeded: %w", c.maxReconnectAttempts, err)
			return
		}

		c.setState(StateReconnecting)
		c.metrics.IncReconnect()
		select {
		case <-ctx.Done():
			return
		case <-c.after(c.reconnectInterval):
		}
	}
}

// streamEvents connects to the SSE endpoint and forwards envelopes until the
// connection ends. It always returns a non-nil error unless ctx is canceled.
func (c *Client) streamEvents(ctx context.Context, reopened bool, onOpen func(), envCh chan<- *Envelope) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(EndpointEvents), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(EndpointEvents, resp); err != nil {
		return err
	}

	c.setState(StateOpen)
	onOpen()
	c.logger.Info("event stream open", "reopened", reopened)

	if reopened {
		select {
		case <-ctx.Done():
			return nil
		case envCh <- &Envelope{Type: MessageTypeReconnected}:
		}
	}

	return c.parseSSEStream(ctx, resp.Body, envCh)
}

// parseSSEStream parses Server-Sent Events from the response body. Events
// whose data is not a valid envelope are dropped and logged.
func (c *Client) parseSSEStream(ctx context.Context, body io.Reader, envCh chan<- *Envelope) error {
	scanner := bufio.NewScanner(body)
	// Full-state pushes can be large
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var dataLines []string

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := scanner.Text()

		// Empty line signals end of event
		if line == "" {
			if len(dataLines) == 0 {
				continue
			}
			data := strings.Join(dataLines, "\n")
			dataLines = nil

			env, err := UnmarshalEnvelope([]byte(data))
			if err != nil {
				c.metrics.IncError(KindDecode)
				c.logger.Warn("dropping malformed push", "error", err)
				continue
			}
			c.metrics.IncEvent(string(env.Type))

			select {
			case <-ctx.Done():
				return nil
			case envCh <- env:
			}
			continue
		}

		// Only "data:" fields matter; comments (":"), event:, id: and retry:
		// are ignored.
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading stream: %w", err)
	}
	return errStreamClosed
}
