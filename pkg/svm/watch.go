package svm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// greetingSentLogPrefix is the program log line emitted on publish.
const greetingSentLogPrefix = "Program log: Greeting sent! Sequence: "

// GreetingEvent is a publish observed through the log subscription.
type GreetingEvent struct {
	Signature string
	Sequence  uint64
	Slot      uint64
}

type (
	logsSubscriptionError struct {
		Jsonrpc string `json:"jsonrpc"`
		Error   struct {
			Code    int     `json:"code"`
			Message *string `json:"message"`
		} `json:"error"`
		ID string `json:"id"`
	}

	logsSubscriptionData struct {
		Jsonrpc string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  *struct {
			Result struct {
				Context struct {
					Slot uint64 `json:"slot"`
				} `json:"context"`
				Value struct {
					Signature string      `json:"signature"`
					Err       interface{} `json:"err"`
					Logs      []string    `json:"logs"`
				} `json:"value"`
			} `json:"result"`
			Subscription int `json:"subscription"`
		} `json:"params"`
	}
)

// WatchGreetings subscribes to the program's logs over websocket and sends a
// GreetingEvent for each observed publish until the context is canceled.
// This is an observation stream, not a source of truth: the submitter's
// read-back of the sequence counter remains authoritative.
func (c *Client) WatchGreetings(ctx context.Context, events chan<- *GreetingEvent) error {
	if c.wsURL == "" {
		return errors.New("no websocket url configured")
	}

	c.logger.Info("connecting to websocket node", zap.String("url", c.wsURL))

	ws, _, err := websocket.Dial(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer ws.Close(websocket.StatusNormalClosure, "")

	subID := uuid.New().String()
	const temp = `{"jsonrpc": "2.0", "id": "%s", "method": "logsSubscribe", "params": [{"mentions": ["%s"]}, {"commitment": "%s"}]}`
	p := fmt.Sprintf(temp, subID, c.Program.ID.String(), string(c.commitment))

	c.logger.Debug("subscribing using", zap.String("filter", p))

	if err := ws.Write(ctx, websocket.MessageText, []byte(p)); err != nil {
		return fmt.Errorf("websocket subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := c.readWebSocketWithTimeout(ctx, ws)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("websocket read: %w", err)
		}

		event, err := c.processLogsNotification(msg)
		if err != nil {
			return err
		}
		if event == nil {
			continue
		}
		select {
		case events <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) readWebSocketWithTimeout(ctx context.Context, ws *websocket.Conn) ([]byte, error) {
	rCtx, cancel := context.WithTimeout(ctx, time.Second*300)
	defer cancel()
	_, msg, err := ws.Read(rCtx)
	return msg, err
}

func (c *Client) processLogsNotification(data []byte) (*GreetingEvent, error) {
	// Do we have an error on the subscription?
	var e logsSubscriptionError
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal subscription message: %w", err)
	}
	if e.Error.Message != nil {
		return nil, errors.New(*e.Error.Message)
	}

	var res logsSubscriptionData
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("unmarshal logs notification: %w", err)
	}
	if res.Params == nil {
		return nil, nil
	}

	value := res.Params.Result.Value
	if value.Err != nil {
		// Failed transactions still produce notifications; skip them.
		return nil, nil
	}

	for _, line := range value.Logs {
		if !strings.HasPrefix(line, greetingSentLogPrefix) {
			continue
		}
		seq, err := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(line, greetingSentLogPrefix)), 10, 64)
		if err != nil {
			c.logger.Warn("unparseable greeting log line", zap.String("line", line), zap.Error(err))
			continue
		}
		return &GreetingEvent{
			Signature: value.Signature,
			Sequence:  seq,
			Slot:      res.Params.Result.Context.Slot,
		}, nil
	}
	return nil, nil
}
