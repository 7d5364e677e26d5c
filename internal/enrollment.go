package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"lecture-chat/contract"
)

// EnrollmentClient asks the platform whether a user may access a lecture's
// chat. With no base URL configured every check passes, which is the
// development mode: identity is still enforced by the JWT handshake.
type EnrollmentClient struct {
	log     *slog.Logger
	baseURL string
	client  *http.Client
}

var _ contract.EnrollmentChecker = (*EnrollmentClient)(nil)

func NewEnrollmentClient(log *slog.Logger, baseURL string, timeout time.Duration) *EnrollmentClient {
	return &EnrollmentClient{
		log:     log,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *EnrollmentClient) IsEnrolled(ctx context.Context, userID, lectureID string) (bool, error) {
	if c.baseURL == "" {
		c.log.Debug("Enrollment check skipped, no endpoint configured", "user_id", userID)
		return true, nil
	}

	endpoint := fmt.Sprintf("%s/enrollments?user=%s&lecture=%s",
		c.baseURL, url.QueryEscape(userID), url.QueryEscape(lectureID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("enrollment service returned %d", resp.StatusCode)
	}

	var body struct {
		Enrolled bool `json:"enrolled"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.Enrolled, nil
}
