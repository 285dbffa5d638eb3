package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/appetiteclub/apt"
)

const defaultTimeout = 30 * time.Second

// Envelope normalizes every backend reply. Application failures come back as
// Success=false with the server message; transport failures additionally set
// IsNetworkError so callers can tell "retry now" from "show the error".
// Call never returns a Go error: all failures are envelope values.
type Envelope struct {
	Success        bool            `json:"success"`
	Error          string          `json:"error,omitempty"`
	IsNetworkError bool            `json:"isNetworkError,omitempty"`
	Data           json.RawMessage `json:"-"`
}

// Decode copies the action-specific body fields into dest.
func (e *Envelope) Decode(dest interface{}) error {
	if e == nil || len(e.Data) == 0 {
		return fmt.Errorf("empty envelope body")
	}
	return json.Unmarshal(e.Data, dest)
}

// Client talks to the single backend function endpoint. One POST per call,
// JSON body {action, ...params}, fixed auth headers. No retry at this layer;
// retry policy belongs to callers.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	logger   apt.Logger
}

func NewClient(endpoint, token string, logger apt.Logger) *Client {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Client{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: defaultTimeout},
		logger:   logger,
	}
}

// Call posts an action payload and returns the normalized envelope.
func (c *Client) Call(ctx context.Context, action string, params map[string]interface{}) *Envelope {
	body := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		body[k] = v
	}
	body["action"] = action

	raw, err := json.Marshal(body)
	if err != nil {
		return &Envelope{Success: false, Error: fmt.Sprintf("encode %s: %v", action, err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return &Envelope{Success: false, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	return c.do(req, action)
}

// CallMultipart posts an action as multipart form data, one part per param
// plus one file part per attachment. Used by createOrder for photo upload.
func (c *Client) CallMultipart(ctx context.Context, action string, params map[string]string, files []File) *Envelope {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("action", action); err != nil {
		return &Envelope{Success: false, Error: err.Error()}
	}
	for k, v := range params {
		if err := w.WriteField(k, v); err != nil {
			return &Envelope{Success: false, Error: err.Error()}
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return &Envelope{Success: false, Error: err.Error()}
		}
		if _, err := part.Write(f.Content); err != nil {
			return &Envelope{Success: false, Error: err.Error()}
		}
	}
	if err := w.Close(); err != nil {
		return &Envelope{Success: false, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return &Envelope{Success: false, Error: err.Error()}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.setAuth(req)

	return c.do(req, action)
}

// File is one multipart attachment.
type File struct {
	Field   string
	Name    string
	Content []byte
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("apikey", c.token)
}

func (c *Client) do(req *http.Request, action string) *Envelope {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Info("backend call failed", "action", action, "error", err)
		return &Envelope{Success: false, Error: err.Error(), IsNetworkError: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Envelope{Success: false, Error: err.Error(), IsNetworkError: true}
	}

	env := decodeEnvelope(raw)
	if !env.Success && env.Error == "" {
		env.Error = fmt.Sprintf("%s failed with status %d", action, resp.StatusCode)
	}
	return env
}

// decodeEnvelope parses the reply body. The backend reports errors either as
// a plain string or as an object with a message field; both collapse to a
// string here so the UI can pass the message through verbatim.
func decodeEnvelope(raw []byte) *Envelope {
	var head struct {
		Success bool            `json:"success"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return &Envelope{Success: false, Error: "invalid response from server"}
	}

	env := &Envelope{Success: head.Success, Data: raw}
	if len(head.Error) == 0 {
		return env
	}

	var msg string
	if err := json.Unmarshal(head.Error, &msg); err == nil {
		env.Error = msg
		return env
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(head.Error, &obj); err == nil && obj.Message != "" {
		env.Error = obj.Message
		return env
	}
	env.Error = string(head.Error)
	return env
}
