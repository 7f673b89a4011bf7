package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"wall/models"
)

// HTTPConfirmClient - реализация ConfirmClient поверх REST API стены
type HTTPConfirmClient struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPConfirmClient(baseURL string) *HTTPConfirmClient {
	return &HTTPConfirmClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPConfirmClient) post(ctx context.Context, token, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: server rejected token", ErrAuth)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: server rejected request", ErrValidation)
	case resp.StatusCode >= 400:
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", ErrNetwork, resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: bad response body: %v", ErrNetwork, err)
		}
	}
	return nil
}

func (c *HTTPConfirmClient) ConfirmPost(ctx context.Context, token, content, image string) (*models.WallPost, error) {
	body := map[string]string{"content": content}
	if image != "" {
		body["image"] = image
	}
	var post models.WallPost
	if err := c.post(ctx, token, "/api/v1/posts", body, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *HTTPConfirmClient) ConfirmComment(ctx context.Context, token string, postID int64, content string) (*models.WallComment, error) {
	var comment models.WallComment
	path := fmt.Sprintf("/api/v1/posts/%d/comments", postID)
	if err := c.post(ctx, token, path, map[string]string{"content": content}, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *HTTPConfirmClient) ConfirmReaction(ctx context.Context, token string, postID int64, reactionType string) (map[string]int, error) {
	var resp struct {
		ReactionCounts map[string]int `json:"reaction_counts"`
		TotalReactions int            `json:"total_reactions"`
	}
	path := fmt.Sprintf("/api/v1/posts/%d/reactions", postID)
	if err := c.post(ctx, token, path, map[string]string{"type": reactionType}, &resp); err != nil {
		return nil, err
	}
	return resp.ReactionCounts, nil
}
