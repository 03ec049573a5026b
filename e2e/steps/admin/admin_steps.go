package admin

import (
	"context"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POSTWithHeaders(path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetAdminToken() string
}

// RegisterSteps registers admin-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &adminSteps{tc: tc}

	ctx.Step(`^I reset the "([^"]*)" limit for "([^"]*)" as admin$`, steps.resetAsAdmin)
	ctx.Step(`^I reset the "([^"]*)" limit for "([^"]*)" without admin token$`, steps.resetWithoutToken)
	ctx.Step(`^I inspect the "([^"]*)" limit for "([^"]*)" as admin$`, steps.inspectAsAdmin)
}

type adminSteps struct {
	tc TestContext
}

func (s *adminSteps) adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Token": s.tc.GetAdminToken()}
}

func (s *adminSteps) resetAsAdmin(ctx context.Context, limitType, identifier string) error {
	return s.tc.POSTWithHeaders("/admin/rate-limit/reset", resetBody(limitType, identifier), s.adminHeaders())
}

func (s *adminSteps) resetWithoutToken(ctx context.Context, limitType, identifier string) error {
	return s.tc.POSTWithHeaders("/admin/rate-limit/reset", resetBody(limitType, identifier), nil)
}

func (s *adminSteps) inspectAsAdmin(ctx context.Context, limitType, identifier string) error {
	return s.tc.GET("/admin/rate-limit/"+limitType+"/"+identifier, s.adminHeaders())
}

func resetBody(limitType, identifier string) map[string]any {
	return map[string]any{
		"identifier": identifier,
		"limit_type": limitType,
	}
}
