package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/tool"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/tool/functiontool"
)

type scheduleTaskArgs struct {
	Name         string `json:"name" jsonschema:"required" jsonschema_description:"Short task identifier"`
	DelaySeconds int    `json:"delay_seconds" jsonschema_description:"How long to wait before running, in seconds"`
	Prompt       string `json:"prompt" jsonschema:"required" jsonschema_description:"Instruction to execute when the task fires"`
}

// buildTriggerTool exposes the scheduler to the model: the tool enqueues a
// delayed execution of the installed trigger handler.
func (r *Runtime) buildTriggerTool() (*tool.Record, error) {
	return functiontool.New(functiontool.Config{
		Name:        "schedule_task",
		Description: "Schedule a task to run later. The prompt is executed when the delay elapses.",
		Category:    tool.CategoryTrigger,
	}, func(ctx context.Context, args scheduleTaskArgs) (map[string]any, error) {
		if r.scheduler == nil {
			return nil, fmt.Errorf("scheduler is not running")
		}
		handler := r.triggerHandler()
		if handler == nil {
			return nil, fmt.Errorf("no trigger handler installed")
		}
		if args.DelaySeconds < 0 {
			return nil, fmt.Errorf("delay_seconds cannot be negative")
		}

		prompt := args.Prompt
		r.scheduler.SubmitAfter(args.Name, time.Duration(args.DelaySeconds)*time.Second, func(ctx context.Context) error {
			return handler(ctx, prompt)
		})

		return map[string]any{
			"scheduled":     true,
			"name":          args.Name,
			"delay_seconds": args.DelaySeconds,
		}, nil
	})
}
