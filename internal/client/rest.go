package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/apperrors"
	"github.com/ammar1510/alumni-chat/internal/models"
)

// envelope covers both the success and the error body of the chat API.
// Connection mutations answer with a top-level connection key.
type envelope struct {
	Success bool            `json:"success"`
	Error   bool            `json:"error"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	HasMore bool            `json:"hasMore"`

	Connection *models.Connection `json:"connection"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	target := c.opts.BaseURL + "/api/chat" + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Unavailable("chat API unreachable", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, apperrors.Internal(fmt.Sprintf("decode %s %s response (status %d)", method, path, resp.StatusCode), err)
	}
	if resp.StatusCode >= http.StatusBadRequest || env.Error {
		code := apperrors.Code(env.Code)
		if code == "" {
			code = apperrors.CodeInternal
		}
		return nil, apperrors.New(code, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, apperrors.Internal(fmt.Sprintf("decode %s %s data", method, path), err)
		}
	}
	return &env, nil
}

func (c *Client) fetchMessages(ctx context.Context, conversationID uuid.UUID, page int) ([]*models.Message, bool, error) {
	query := url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(c.opts.PageSize)},
	}
	var msgs []*models.Message
	env, err := c.do(ctx, http.MethodGet, "/messages/"+conversationID.String(), query, nil, &msgs)
	if err != nil {
		return nil, false, err
	}
	return msgs, env.HasMore, nil
}

// postMessage sends tempID as the client id so a repeated POST returns
// the stored message.
func (c *Client) postMessage(ctx context.Context, conversationID uuid.UUID, content, tempID string) (*models.Message, error) {
	var msg models.Message
	body := map[string]interface{}{"conversationId": conversationID, "content": content, "clientId": tempID}
	if _, err := c.do(ctx, http.MethodPost, "/messages", nil, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) markReadREST(ctx context.Context, conversationID uuid.UUID) error {
	_, err := c.do(ctx, http.MethodPut, "/conversations/"+conversationID.String()+"/read", nil, nil, nil)
	return err
}

func (c *Client) deleteREST(ctx context.Context, messageID uuid.UUID) error {
	_, err := c.do(ctx, http.MethodDelete, "/messages/"+messageID.String(), nil, nil, nil)
	return err
}

func (c *Client) fetchConversations(ctx context.Context) ([]*models.ConversationView, error) {
	var views []*models.ConversationView
	query := url.Values{"limit": {strconv.Itoa(100)}}
	if _, err := c.do(ctx, http.MethodGet, "/conversations", query, nil, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// StartConversation opens (or finds) the thread with another user. The
// two must already be connected.
func (c *Client) StartConversation(ctx context.Context, participantID uuid.UUID) (*models.ConversationView, error) {
	var view models.ConversationView
	body := map[string]interface{}{"participantId": participantID}
	if _, err := c.do(ctx, http.MethodPost, "/conversations", nil, body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// RequestConnection asks another user to connect.
func (c *Client) RequestConnection(ctx context.Context, recipientID uuid.UUID, message string) (*models.Connection, error) {
	body := map[string]interface{}{"recipientId": recipientID, "requestMessage": message}
	env, err := c.do(ctx, http.MethodPost, "/connections/request", nil, body, nil)
	if err != nil {
		return nil, err
	}
	return env.Connection, nil
}

// RespondToConnection accepts, rejects or blocks a pending request.
func (c *Client) RespondToConnection(ctx context.Context, connectionID uuid.UUID, action models.ConnectionAction) (*models.Connection, error) {
	body := map[string]interface{}{"connectionId": connectionID, "action": action}
	env, err := c.do(ctx, http.MethodPost, "/connections/respond", nil, body, nil)
	if err != nil {
		return nil, err
	}
	return env.Connection, nil
}
