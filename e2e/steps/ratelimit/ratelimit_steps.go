package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetStatuses() []int
	ResetStatuses()
	AdvanceClock(d time.Duration)
}

// RegisterSteps registers rate limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &rateLimitSteps{tc: tc}

	ctx.Step(`^I send (\d+) contact submissions to "([^"]*)"$`, steps.sendContactSubmissions)
	ctx.Step(`^the first (\d+) requests should succeed$`, steps.firstRequestsShouldSucceed)
	ctx.Step(`^the remaining requests should be rate limited$`, steps.remainingShouldBeLimited)
	ctx.Step(`^I check my "([^"]*)" limit$`, steps.checkMyLimit)
	ctx.Step(`^(\d+) minutes pass$`, steps.minutesPass)
}

type rateLimitSteps struct {
	tc TestContext
}

// ContactBody is a valid contact form submission numbered n, so repeated
// submissions never collapse into one outbound call.
func ContactBody(n int) map[string]any {
	return map[string]any{
		"name":    "Ada Lovelace",
		"email":   "ada@example.com",
		"message": fmt.Sprintf("Hello from submission %d", n),
	}
}

func (s *rateLimitSteps) sendContactSubmissions(ctx context.Context, count int, path string) error {
	s.tc.ResetStatuses()
	for i := range count {
		if err := s.tc.POST(path, ContactBody(i)); err != nil {
			return err
		}
	}
	return nil
}

func (s *rateLimitSteps) firstRequestsShouldSucceed(ctx context.Context, count int) error {
	statuses := s.tc.GetStatuses()
	if len(statuses) < count {
		return fmt.Errorf("only %d requests were sent", len(statuses))
	}
	for i, status := range statuses[:count] {
		if status != http.StatusOK {
			return fmt.Errorf("request %d: expected 200 but got %d", i+1, status)
		}
	}
	return nil
}

func (s *rateLimitSteps) remainingShouldBeLimited(ctx context.Context) error {
	statuses := s.tc.GetStatuses()
	limited := 0
	for i := len(statuses) - 1; i >= 0 && statuses[i] == http.StatusTooManyRequests; i-- {
		limited++
	}
	if limited == 0 {
		return fmt.Errorf("expected trailing 429 responses, got %v", statuses)
	}
	for _, status := range statuses[:len(statuses)-limited] {
		if status == http.StatusTooManyRequests {
			return fmt.Errorf("a request was limited before the quota ran out: %v", statuses)
		}
	}
	return nil
}

func (s *rateLimitSteps) checkMyLimit(ctx context.Context, limitType string) error {
	return s.tc.GET("/api/rate-limit/"+limitType, nil)
}

func (s *rateLimitSteps) minutesPass(ctx context.Context, minutes int) error {
	s.tc.AdvanceClock(time.Duration(minutes) * time.Minute)
	return nil
}
