package gmailclient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jakechorley/cake-orders/pkg/core/model"
)

// NotifyNewSubmissions emails the operator a digest of newly received orders
func (c *Client) NotifyNewSubmissions(ctx context.Context, subs []model.PersistedSubmission) error {
	if len(subs) == 0 {
		return nil
	}
	subject, body := BuildDigest(subs, time.Now())
	return c.SendEmail(ctx, c.to, subject, body)
}

// BuildDigest renders the subject and plain-text body of a new-order digest, ordered by pickup date
func BuildDigest(subs []model.PersistedSubmission, now time.Time) (string, string) {
	sorted := append([]model.PersistedSubmission(nil), subs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PickupDateOr(now).Before(sorted[j].PickupDateOr(now))
	})

	noun := "orders"
	if len(sorted) == 1 {
		noun = "order"
	}
	subject := fmt.Sprintf("%d new cake %s", len(sorted), noun)

	var b strings.Builder
	fmt.Fprintf(&b, "%s received:\n\n", subject)
	for _, s := range sorted {
		name := s.CustomerName()
		if name == "" {
			name = "(no name)"
		}

		pickup := "no pickup date"
		if date, ok := s.PickupDate(); ok {
			pickup = date.Format("Mon 2 Jan 2006")
		}

		fmt.Fprintf(&b, "- %s, pickup %s (submission %s)\n", name, pickup, s.SubmissionID)
	}
	return subject, b.String()
}
