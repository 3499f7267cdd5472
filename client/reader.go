package client

import (
	"github.com/pkg/errors"

	imap "github.com/meszmate/imap-codec"
	"github.com/meszmate/imap-codec/wire"
)

// readLoop parses and dispatches server responses until the stream ends.
func (c *Client) readLoop() {
	for p := range c.stream.Payloads() {
		c.options.Metrics.ObservePayload(p)
		resp, err := wire.ParsePayload(p)
		p.Next()
		if err != nil {
			c.options.Metrics.ObserveParseError(err)
			if wire.IsFatal(err) {
				c.options.Logger.Error().Err(err).Msg("unrecoverable response")
				c.handleDisconnect(errors.Wrap(err, "parsing response"))
				_ = c.conn.Close()
				return
			}
			c.options.Logger.Warn().Err(err).Str("line", string(p.Text)).Msg("dropping unparsable response")
			continue
		}

		if c.options.DebugLog {
			c.options.Logger.Debug().
				Str("tag", resp.Tag).
				Str("command", resp.Command).
				Int("literals", len(p.Literals)).
				Msg("recv")
		}
		c.dispatch(resp)
	}

	err := c.stream.Err()
	if wire.IsFatal(err) {
		c.options.Metrics.ObserveParseError(err)
	}
	if err == nil {
		err = errors.New("connection closed by server")
	}
	c.handleDisconnect(err)
}

// dispatch routes one response.
func (c *Client) dispatch(resp *imap.Response) {
	switch {
	case resp.IsContinuation():
		select {
		case c.continuationCh <- resp:
		default:
			c.options.Logger.Debug().Str("text", resp.HumanReadable).Msg("unexpected continuation request")
		}

	case resp.IsUntagged():
		if caps := imap.CapsFromResponse(resp); caps != nil {
			c.setCaps(caps)
		}
		if sr := resp.Status(); sr != nil && sr.Type == imap.StatusResponseTypeBYE {
			c.options.Logger.Info().Str("text", sr.Text).Msg("server is closing the connection")
		}
		if h := c.options.UnilateralDataHandler; h != nil {
			h(resp)
		}
		c.pending.Broadcast(resp)

	default:
		if caps := imap.CapsFromResponse(resp); caps != nil {
			c.setCaps(caps)
		}
		if !c.pending.Complete(resp.Tag, &commandResult{resp: resp}) {
			c.options.Logger.Warn().Str("tag", resp.Tag).Msg("response for unknown tag")
		}
	}
}

// handleDisconnect records why the connection ended and fails every
// command still in flight.
func (c *Client) handleDisconnect(err error) {
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return
	}
	if c.closed {
		err = ErrClosed
	}
	c.err = err
	close(c.done)
	c.mu.Unlock()

	c.cancel()
	c.pending.CompleteAll(err)
}
