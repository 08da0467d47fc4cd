package runtime

import (
	"context"
	"strings"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/experience"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/hooks"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/state"
)

const (
	experienceContributorPriority = 50
	experienceContributorLimit    = 5
)

// experienceContributor appends the caller's most relevant stored
// experiences to the system prompt at BEFORE_MODEL.
type experienceContributor struct {
	repo  experience.Repository
	limit int
}

func newExperienceContributor(repo experience.Repository) *experienceContributor {
	return &experienceContributor{repo: repo, limit: experienceContributorLimit}
}

func (c *experienceContributor) Name() string  { return "experience" }
func (c *experienceContributor) Priority() int { return experienceContributorPriority }

func (c *experienceContributor) Contribute(st *state.State) (*hooks.Contribution, error) {
	qctx := experience.QueryContext{}
	if v, ok := st.Get(state.KeyUserID); ok {
		qctx.UserID, _ = v.(string)
	}
	if v, ok := st.Get(state.KeyLanguage); ok {
		qctx.Language, _ = v.(string)
	}

	matches := c.repo.Query(context.Background(), experience.Query{
		Language: qctx.Language,
		Limit:    c.limit,
	}, qctx)
	if len(matches) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("Relevant past experience:")
	for _, e := range matches {
		sb.WriteString("\n\n### ")
		sb.WriteString(e.Title)
		if content := e.EffectiveContent(); content != "" {
			sb.WriteString("\n")
			sb.WriteString(content)
		}
	}
	return &hooks.Contribution{SystemAppend: sb.String()}, nil
}
