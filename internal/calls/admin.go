package calls

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RoomAdminClient drives the media backend's room management API with
// short-lived admin-grant service tokens: forcibly removing participants
// and controlling recordings.
type RoomAdminClient struct {
	baseURL string
	issuer  *TokenIssuer
	client  *http.Client
}

// NewRoomAdminClient creates a client for the media backend at baseURL.
func NewRoomAdminClient(baseURL string, issuer *TokenIssuer) *RoomAdminClient {
	return &RoomAdminClient{
		baseURL: baseURL,
		issuer:  issuer,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// RemoveParticipant ejects an identity from a room.
func (c *RoomAdminClient) RemoveParticipant(ctx context.Context, roomName, identity string) error {
	req := map[string]string{"room": roomName, "identity": identity}
	return c.post(ctx, "/twirp/livekit.RoomService/RemoveParticipant", roomName, req, nil)
}

// StartRecording starts a composite recording of a room and returns the
// backend's recording id.
func (c *RoomAdminClient) StartRecording(ctx context.Context, roomName string) (string, error) {
	req := map[string]interface{}{
		"room_name": roomName,
		"file_outputs": []map[string]string{
			{"filepath": "recordings/" + roomName + ".mp4"},
		},
	}
	var resp struct {
		EgressID string `json:"egress_id"`
	}
	if err := c.post(ctx, "/twirp/livekit.Egress/StartRoomCompositeEgress", roomName, req, &resp); err != nil {
		return "", err
	}
	return resp.EgressID, nil
}

// StopRecording stops a recording by its id.
func (c *RoomAdminClient) StopRecording(ctx context.Context, roomName, recordingID string) error {
	req := map[string]string{"egress_id": recordingID}
	return c.post(ctx, "/twirp/livekit.Egress/StopEgress", roomName, req, nil)
}

func (c *RoomAdminClient) post(ctx context.Context, path, roomName string, body, out interface{}) error {
	token, err := c.issuer.serviceToken(roomName)
	if err != nil {
		return fmt.Errorf("media admin call %s: %w", path, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("media admin call %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("media admin call %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("media admin call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("media admin call %s: status %d: %s", path, resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("media admin call %s: decode response: %w", path, err)
		}
	}
	return nil
}
