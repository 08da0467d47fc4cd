package runtime

import (
	"context"
	"fmt"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/config"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/tool"
)

// replyTool pairs a built record with the phases it is registered for.
type replyTool struct {
	record *tool.Record
	phases config.PhaseFlags
}

// buildReplyTools converts the declarative reply section into direct-reply
// tool records.
func buildReplyTools(cfg config.ReplyConfig) ([]replyTool, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	out := make([]replyTool, 0, len(cfg.Tools))
	for _, tc := range cfg.Tools {
		params, err := replyParameters(tc)
		if err != nil {
			return nil, err
		}
		rec := &tool.Record{
			Definition: &tool.Definition{
				Name:        tc.Name,
				Description: tc.Description,
				Category:    tool.CategoryReply,
				Parameters:  params,
				DirectReply: true,
			},
			Call: replyHandler(tc),
		}
		out = append(out, replyTool{record: rec, phases: tc.Phases})
	}
	return out, nil
}

func replyParameters(tc config.ReplyToolConfig) ([]*tool.Parameter, error) {
	params := make([]*tool.Parameter, 0, len(tc.Parameters))
	for _, pc := range tc.Parameters {
		typ := tool.ParamType(pc.Type)
		if pc.Type == "" {
			typ = tool.TypeString
		}
		switch typ {
		case tool.TypeString, tool.TypeInteger, tool.TypeNumber, tool.TypeBoolean, tool.TypeObject, tool.TypeArray:
		default:
			return nil, fmt.Errorf("reply tool '%s' parameter '%s' has unknown type '%s'", tc.Name, pc.Name, pc.Type)
		}
		params = append(params, &tool.Parameter{
			Name:        pc.Name,
			Type:        typ,
			Required:    pc.Required,
			Description: pc.Description,
		})
	}
	return params, nil
}

// replyHandler echoes the arguments back as the reply payload, stamped with
// the configured channel. The DirectReply flag makes the agent loop treat
// the payload's content field as the final answer.
func replyHandler(tc config.ReplyToolConfig) tool.Handler {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		out := make(map[string]any, len(args)+1)
		for k, v := range args {
			out[k] = v
		}
		if tc.Channel != "" {
			out["channel"] = tc.Channel
		}
		return out, nil
	}
}
