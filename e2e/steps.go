package e2e

import (
	"github.com/cucumber/godog"

	"hudson/e2e/steps/admin"
	"hudson/e2e/steps/common"
	"hudson/e2e/steps/ratelimit"
	"hudson/e2e/steps/submission"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
	submission.RegisterSteps(ctx, tc)
	admin.RegisterSteps(ctx, tc)
}
