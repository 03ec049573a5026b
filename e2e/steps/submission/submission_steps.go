package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"

	"hudson/internal/dedup"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	POSTConcurrently(path string, body any, n int) error
	AwaitWaiters(key dedup.Key, n int) error
	GetStatuses() []int
	WebhookDeliveries() int
	WebhookRespondWith(status int)
	HoldWebhook() func()
	GetWebhookURL() string
}

// RegisterSteps registers contact and newsletter submission steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &submissionSteps{tc: tc}

	ctx.Step(`^the webhook responds with status (\d+)$`, steps.webhookRespondsWith)
	ctx.Step(`^I submit the contact form with message "([^"]*)"$`, steps.submitContact)
	ctx.Step(`^I subscribe "([^"]*)" to the newsletter$`, steps.subscribe)
	ctx.Step(`^(\d+) identical contact submissions with message "([^"]*)" arrive at once$`, steps.identicalSubmissions)
	ctx.Step(`^all (\d+) submissions should get status (\d+)$`, steps.allSubmissionsShouldGet)
	ctx.Step(`^the webhook should have received (\d+) deliver(?:y|ies)$`, steps.webhookShouldHaveReceived)
}

type submissionSteps struct {
	tc TestContext
}

const (
	contactName  = "Grace Hopper"
	contactEmail = "grace@example.com"
)

func contactBody(message string) map[string]any {
	return map[string]any{
		"name":    contactName,
		"email":   contactEmail,
		"message": message,
	}
}

// contactKey is the key the relay files a contact delivery under.
func (s *submissionSteps) contactKey(message string) (dedup.Key, error) {
	body, err := json.Marshal(map[string]any{
		"type":    "contact",
		"name":    contactName,
		"email":   contactEmail,
		"message": message,
	})
	if err != nil {
		return "", err
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return dedup.KeyFor(&dedup.Request{
		Method: http.MethodPost,
		URL:    s.tc.GetWebhookURL() + "/contact",
		Header: header,
		Body:   body,
	})
}

func (s *submissionSteps) webhookRespondsWith(ctx context.Context, status int) error {
	s.tc.WebhookRespondWith(status)
	return nil
}

func (s *submissionSteps) submitContact(ctx context.Context, message string) error {
	return s.tc.POST("/api/contact", contactBody(message))
}

func (s *submissionSteps) subscribe(ctx context.Context, email string) error {
	return s.tc.POST("/api/newsletter", map[string]any{
		"email":  email,
		"source": "footer",
	})
}

// identicalSubmissions holds the webhook until every submission but the
// leader is waiting on its pending call, then releases it.
func (s *submissionSteps) identicalSubmissions(ctx context.Context, count int, message string) error {
	key, err := s.contactKey(message)
	if err != nil {
		return err
	}

	release := s.tc.HoldWebhook()
	defer release()

	done := make(chan error, 1)
	go func() {
		done <- s.tc.POSTConcurrently("/api/contact", contactBody(message), count)
	}()

	if err := s.tc.AwaitWaiters(key, count-1); err != nil {
		release()
		<-done
		return err
	}
	release()
	return <-done
}

func (s *submissionSteps) allSubmissionsShouldGet(ctx context.Context, count, status int) error {
	statuses := s.tc.GetStatuses()
	if len(statuses) != count {
		return fmt.Errorf("expected %d responses but got %d", count, len(statuses))
	}
	var wrong []string
	for i, got := range statuses {
		if got != status {
			wrong = append(wrong, fmt.Sprintf("#%d=%d", i+1, got))
		}
	}
	if len(wrong) > 0 {
		return fmt.Errorf("expected every status to be %d: %s", status, strings.Join(wrong, ", "))
	}
	return nil
}

func (s *submissionSteps) webhookShouldHaveReceived(ctx context.Context, count int) error {
	if got := s.tc.WebhookDeliveries(); got != count {
		return fmt.Errorf("expected %d webhook deliveries but got %d", count, got)
	}
	return nil
}
