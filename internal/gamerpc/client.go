// Package gamerpc speaks the game's websocket API and adapts it to the
// hgw.Env collaborator interface.
package gamerpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"netfarm/internal/hgw"
	"netfarm/internal/protocol"
)

// Client is a websocket CALL/RESULT client. It is safe for use by many
// target schedulers at once: writes are serialized, results are routed
// to callers by call id.
type Client struct {
	conn   *websocket.Conn
	logger *log.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan protocol.ResultMsg

	nextID    atomic.Int64
	closed    chan struct{}
	closeOnce sync.Once
	readErr   error

	welcome protocol.WelcomeMsg
}

// Dial connects, performs the HELLO/WELCOME handshake, and starts the
// read pump.
func Dial(ctx context.Context, url, agentName string, logger *log.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       agentName,
	}
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}

	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	if welcome.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("handshake: got %q, want WELCOME", welcome.Type)
	}

	c := &Client{
		conn:    conn,
		logger:  logger,
		pending: map[string]chan protocol.ResultMsg{},
		closed:  make(chan struct{}),
		welcome: welcome,
	}
	go c.readLoop()
	return c, nil
}

// Welcome returns the handshake payload (per-thread RAM costs etc.).
func (c *Client) Welcome() protocol.WelcomeMsg { return c.welcome }

// RAMCosts returns the per-thread costs the server announced.
func (c *Client) RAMCosts() hgw.RAMCosts {
	return hgw.RAMCosts{
		Hack:   c.welcome.GameParams.HackRAMGB,
		Grow:   c.welcome.GameParams.GrowRAMGB,
		Weaken: c.welcome.GameParams.WeakenRAMGB,
	}
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
	return nil
}

func (c *Client) readLoop() {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			select {
			case <-c.closed:
			default:
				c.logger.Printf("read loop: %v", err)
			}
			c.Close()
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeResult {
			continue
		}
		var res protocol.ResultMsg
		if err := json.Unmarshal(msg, &res); err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[res.ID]
		if ok {
			delete(c.pending, res.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- res
		}
	}
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	id := fmt.Sprintf("c_%d", c.nextID.Add(1))

	ch := make(chan protocol.ResultMsg, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	msg := protocol.CallMsg{
		Type:            protocol.TypeCall,
		ProtocolVersion: protocol.Version,
		ID:              id,
		Method:          method,
		Params:          raw,
	}
	c.writeMu.Lock()
	err = c.conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("%s: write: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case <-c.closed:
		c.mu.Lock()
		readErr := c.readErr
		c.mu.Unlock()
		return fmt.Errorf("%s: connection closed: %w", method, readErr)
	case res := <-ch:
		if res.Error != nil {
			return fmt.Errorf("%s: %s (%s)", method, res.Error.Message, res.Error.Code)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(res.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
		return nil
	}
}

// hgw.Env implementation.

func (c *Client) ObserveTarget(ctx context.Context, host string) (hgw.TargetState, error) {
	var obs protocol.TargetObs
	if err := c.call(ctx, protocol.MethodObserveTarget, protocol.ObserveTargetParams{Host: host}, &obs); err != nil {
		return hgw.TargetState{}, err
	}
	return hgw.TargetState{
		Host:        obs.Host,
		Value:       obs.Value,
		MaxValue:    obs.MaxValue,
		Security:    obs.Security,
		MinSecurity: obs.MinSecurity,
		GrowthBase:  obs.GrowthBase,
		HackYield:   obs.HackYield,
	}, nil
}

func (c *Client) ObserveHost(ctx context.Context, host string) (hgw.HostState, error) {
	var obs protocol.HostObs
	if err := c.call(ctx, protocol.MethodObserveHost, protocol.ObserveHostParams{Host: host}, &obs); err != nil {
		return hgw.HostState{}, err
	}
	return hgw.HostState{Host: obs.Host, FreeRAM: obs.FreeRAMGB, TotalRAM: obs.MaxRAMGB}, nil
}

func (c *Client) Dispatch(ctx context.Context, op hgw.Op) (hgw.Handle, error) {
	params := protocol.DispatchParams{
		Kind:    string(op.Kind),
		Host:    op.Host,
		Target:  op.Target,
		Threads: op.Threads,
		DelayMs: op.Delay.Milliseconds(),
	}
	var res protocol.DispatchResult
	if err := c.call(ctx, protocol.MethodDispatch, params, &res); err != nil {
		return hgw.Handle{}, err
	}
	return hgw.Handle{Host: res.Host, PID: res.PID}, nil
}

func (c *Client) IsFinished(ctx context.Context, h hgw.Handle) (bool, error) {
	var res protocol.IsFinishedResult
	if err := c.call(ctx, protocol.MethodIsFinished, protocol.IsFinishedParams{Host: h.Host, PID: h.PID}, &res); err != nil {
		return false, err
	}
	return res.Finished, nil
}

func (c *Client) PredictDuration(ctx context.Context, target string, kind hgw.Kind) (time.Duration, error) {
	var res protocol.PredictDurationResult
	params := protocol.PredictDurationParams{Target: target, Kind: string(kind)}
	if err := c.call(ctx, protocol.MethodPredictDuration, params, &res); err != nil {
		return 0, err
	}
	return time.Duration(res.DurationMs) * time.Millisecond, nil
}
