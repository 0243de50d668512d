package gmailclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/api/gmail/v1"
)

// EmailInterval is the minimum gap between two sends
const EmailInterval = 3 * time.Second

// SendEmail sends a plain-text email. Sends are throttled to respect Gmail API rate limits.
func (c *Client) SendEmail(ctx context.Context, to, subject, body string) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if !c.lastSendTime.IsZero() {
		if wait := c.interval - time.Since(c.lastSendTime); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	message := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body)

	gmailMessage := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(message)),
	}

	if _, err := c.service.Users.Messages.Send("me", gmailMessage).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.lastSendTime = time.Now()
	return nil
}
