package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// A2AClient sends one-shot messages to a peer agent's A2A endpoint. Each
// call carries a fresh message ID and no context ID, so the peer treats
// every delegation as a standalone exchange.
type A2AClient struct {
	endpoint string
	client   *http.Client
}

// NewA2AClient creates a client for the peer at endpoint.
func NewA2AClient(endpoint string, timeout time.Duration) *A2AClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &A2AClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// SendMessage posts text via message/send and returns the peer's reply text.
func (c *A2AClient) SendMessage(ctx context.Context, text string) (string, error) {
	id := generateMessageID(time.Now())

	params, err := json.Marshal(messageSendParams{
		Message: a2aMessage{
			Role:      "user",
			Parts:     []a2aPart{{Kind: "text", Text: text}},
			MessageID: id,
			Kind:      "message",
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}

	body, err := json.Marshal(jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "message/send",
		Params:  params,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("peer returned status %d", resp.StatusCode)
	}

	var rpcResp struct {
		Result a2aMessage    `json:"result"`
		Error  *jsonrpcError `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rpcResp); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	if rpcResp.Error != nil {
		return "", fmt.Errorf("peer error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	reply := textOfParts(rpcResp.Result.Parts)
	if reply == "" {
		return "", fmt.Errorf("peer reply has no text part")
	}
	return reply, nil
}
