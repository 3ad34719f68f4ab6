// Package twitchapi contains minimal helpers to interact with the Twitch
// Helix API: user id resolution and sending whispers on behalf of the bot
// account, using the bot's user access token.
package twitchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBaseURL is the production Helix endpoint.
const DefaultBaseURL = "https://api.twitch.tv/helix"

// ErrUserNotFound is returned when a login does not resolve to a user.
var ErrUserNotFound = errors.New("user not found")

// HelixClient provides the Helix calls needed for whispering.
type HelixClient struct {
	ClientID   string
	Token      string // user access token, with or without the "oauth:" prefix
	BaseURL    string
	HTTPClient *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) endpoint(path string, q url.Values) string {
	base := hc.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u := strings.TrimRight(base, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (hc *HelixClient) authorize(req *http.Request) {
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+strings.TrimPrefix(hc.Token, "oauth:"))
}

// GetUserID resolves a login name to its user ID.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.endpoint("/users", url.Values{"login": {strings.ToLower(login)}}), nil)
	if err != nil {
		return "", err
	}
	hc.authorize(req)
	resp, err := hc.http().Do(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return "", statusError("get user "+login, resp)
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if len(body.Data) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, login)
	}
	return body.Data[0].ID, nil
}

// SendWhisper sends message from one user id to another. Helix answers
// 204 No Content on success.
func (hc *HelixClient) SendWhisper(ctx context.Context, fromID, toID, message string) error {
	if fromID == "" || toID == "" {
		return fmt.Errorf("whisper needs both user ids")
	}
	payload, err := json.Marshal(struct {
		Message string `json:"message"`
	}{message})
	if err != nil {
		return err
	}
	q := url.Values{"from_user_id": {fromID}, "to_user_id": {toID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hc.endpoint("/whispers", q), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	hc.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError("send whisper", resp)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("twitch %s failed: %s: %s", op, resp.Status, strings.TrimSpace(string(b)))
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}
