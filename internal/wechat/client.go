// Package wechat speaks to the personal-account chat gateway: QR-code
// login, cached-session resume, and the websocket receive loop. The
// wire protocol is owned by the gateway; everything above this package
// sees only bus.InboundEvent and the opaque session artifact.
package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yk-CNMB/gemini-itchat-bot/internal/bus"
	"github.com/yk-CNMB/gemini-itchat-bot/internal/session"
)

type Profile struct {
	UserName string `json:"user_name"`
	NickName string `json:"nick_name"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Dialer  *websocket.Dialer

	// QRPollInterval and LoginTimeout bound the confirmation poll.
	QRPollInterval time.Duration
	LoginTimeout   time.Duration

	logger *slog.Logger

	mu    sync.RWMutex
	token string
	self  Profile
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		HTTP:           &http.Client{Timeout: 30 * time.Second},
		Dialer:         websocket.DefaultDialer,
		QRPollInterval: 2 * time.Second,
		LoginTimeout:   3 * time.Minute,
		logger:         logger,
	}
}

// artifact is what the session manager persists between restarts. Its
// layout matters only to this package.
type artifact struct {
	Token string  `json:"token"`
	Self  Profile `json:"self"`
}

type qrLoginResponse struct {
	UUID  string `json:"uuid"`
	QRURL string `json:"qr_url"`
}

type loginCheckResponse struct {
	Status string  `json:"status"`
	Token  string  `json:"token"`
	Self   Profile `json:"self"`
}

type resumeRequest struct {
	Token string `json:"token"`
}

type resumeResponse struct {
	Self Profile `json:"self"`
}

// Login performs the cold path: request a QR code, print the scan URL
// for the operator, and poll until the gateway reports confirmation.
func (c *Client) Login(ctx context.Context) ([]byte, error) {
	var qr qrLoginResponse
	if err := c.postJSON(ctx, "/api/login/qr", nil, &qr); err != nil {
		return nil, fmt.Errorf("request qr: %w", err)
	}
	if qr.UUID == "" {
		return nil, fmt.Errorf("gateway returned no login uuid")
	}

	fmt.Fprintf(os.Stdout, "Scan the QR code to log in: %s\n", qr.QRURL)
	c.logger.Info("login_qr_issued", "uuid", qr.UUID)

	deadline := time.Now().Add(c.LoginTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("login confirmation timed out")
		}

		var check loginCheckResponse
		err := c.getJSON(ctx, "/api/login/check?uuid="+url.QueryEscape(qr.UUID), &check)
		if err != nil {
			return nil, fmt.Errorf("poll login: %w", err)
		}

		switch check.Status {
		case "confirmed":
			if check.Token == "" {
				return nil, fmt.Errorf("gateway confirmed login without a token")
			}
			c.setSession(check.Token, check.Self)
			fmt.Fprintln(os.Stdout, "Login confirmed.")
			c.logger.Info("login_confirmed", "nick_name", check.Self.NickName)
			return json.Marshal(artifact{Token: check.Token, Self: check.Self})
		case "expired", "denied":
			return nil, fmt.Errorf("login %s", check.Status)
		case "pending", "scanned", "":
			// keep polling
		default:
			return nil, fmt.Errorf("unknown login status: %q", check.Status)
		}

		timer := time.NewTimer(c.QRPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Resume is the hot path. A blob this package can't decode, or one the
// gateway rejects, is an error; the caller discards the artifact.
func (c *Client) Resume(ctx context.Context, blob []byte) error {
	var art artifact
	if err := json.Unmarshal(blob, &art); err != nil {
		return fmt.Errorf("decode session artifact: %w", err)
	}
	if strings.TrimSpace(art.Token) == "" {
		return fmt.Errorf("session artifact has no token")
	}

	var resumed resumeResponse
	if err := c.postJSON(ctx, "/api/login/resume", resumeRequest{Token: art.Token}, &resumed); err != nil {
		return fmt.Errorf("resume session: %w", err)
	}
	if resumed.Self.UserName != "" {
		art.Self = resumed.Self
	}
	c.setSession(art.Token, art.Self)
	return nil
}

func (c *Client) Self() Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

type wsFrame struct {
	Type    string     `json:"type"`
	Message *wsMessage `json:"message,omitempty"`
	To      string     `json:"to,omitempty"`
	Text    string     `json:"text,omitempty"`
}

type wsMessage struct {
	FromUser  string `json:"from_user"`
	FromName  string `json:"from_name"`
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
	Text      string `json:"text"`
}

// Listen dials the event stream and dispatches messages to handler
// until the connection dies or ctx is canceled. Replies are written
// back on the same connection; an empty handler return sends nothing.
func (c *Client) Listen(ctx context.Context, handler session.Handler) error {
	c.mu.RLock()
	token := c.token
	self := c.self
	c.mu.RUnlock()
	if token == "" {
		return fmt.Errorf("listen before authentication")
	}

	wsURL, err := c.websocketURL(token)
	if err != nil {
		return err
	}
	conn, resp, err := c.Dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial event stream: %w (http %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial event stream: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop when the operator interrupts.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-watchDone:
		}
	}()

	c.logger.Info("event_stream_connected")
	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("event stream read: %w", err)
		}
		if frame.Type != "message" || frame.Message == nil {
			continue
		}
		msg := frame.Message
		if msg.FromUser == "" || msg.FromUser == self.UserName {
			continue
		}

		ev := eventFromMessage(msg)
		reply := handler(ctx, ev)
		if reply == "" {
			continue
		}

		target := msg.FromUser
		if msg.GroupID != "" {
			target = msg.GroupID
		}
		if err := conn.WriteJSON(wsFrame{Type: "text", To: target, Text: reply}); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("event stream write: %w", err)
		}
	}
}

func eventFromMessage(msg *wsMessage) bus.InboundEvent {
	kind := bus.KindPrivateText
	room := bus.Identity("")
	if msg.GroupID != "" {
		kind = bus.KindGroupText
		room = bus.Identity(msg.GroupID)
	}
	return bus.NewInboundEvent(kind, bus.Identity(msg.FromUser), msg.FromName, room, msg.Text)
}

func (c *Client) websocketURL(token string) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported gateway scheme: %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"
	u.RawQuery = "token=" + url.QueryEscape(token)
	return u.String(), nil
}

func (c *Client) setSession(token string, self Profile) {
	c.mu.Lock()
	c.token = token
	c.self = self
	c.mu.Unlock()
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gateway decode: %w", err)
	}
	return nil
}
