package gmailclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jakechorley/cake-orders/internal/config"
	"github.com/jakechorley/cake-orders/pkg/utils"
)

// Client wraps the Gmail API client
type Client struct {
	service      *gmail.Service
	to           string
	interval     time.Duration
	lastSendTime time.Time
	sendMutex    sync.Mutex
}

// NewClient creates a Gmail client that sends as cfg.Sender through a service account
func NewClient(ctx context.Context, cfg config.NotificationsConfig) (*Client, error) {
	httpClient, err := utils.ServiceAccountClient(ctx, cfg.CredentialsFile, cfg.Sender, utils.ScopeGmailSend)
	if err != nil {
		return nil, fmt.Errorf("failed to authorise gmail client: %w", err)
	}

	return newClient(ctx, httpClient, cfg.To)
}

func newClient(ctx context.Context, httpClient *http.Client, to string, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)

	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &Client{
		service:  service,
		to:       to,
		interval: EmailInterval,
	}, nil
}
