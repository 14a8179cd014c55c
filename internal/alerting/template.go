package alerting

import (
	"fmt"
	"strings"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

// DefaultMessageTemplate renders when a rule carries no template.
const DefaultMessageTemplate = "{projectName} build #{buildNumber} on {branch}: {status}"

// RenderMessage substitutes build placeholders into a rule's message
// template. Unrecognized placeholders are left verbatim.
func RenderMessage(template string, build *models.Build) string {
	if template == "" {
		template = DefaultMessageTemplate
	}
	replacer := strings.NewReplacer(
		"{projectName}", build.Project,
		"{buildNumber}", fmt.Sprintf("%d", build.Number),
		"{status}", string(build.Status),
		"{branch}", build.Branch,
		"{duration}", fmt.Sprintf("%dm", build.DurationMinutes()),
		"{environment}", build.Environment,
		"{triggeredBy}", build.TriggeredBy,
	)
	return replacer.Replace(template)
}
