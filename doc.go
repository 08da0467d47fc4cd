// Package assistantagent is a runtime platform for code-acting AI agents.
//
// The platform lets an agent answer either through native tool calls
// (React) or by synthesizing and executing small programs against a tool
// registry (CodeAct). Around that loop it provides a hook pipeline,
// DAG-based evaluation suites, a learning loop that distills finished
// turns into reusable experiences, and a scoped experience store that
// feeds future prompts.
//
// Packages under pkg/ are independently usable; pkg/runtime composes them
// from a YAML configuration and cmd/agentd is the CLI entry point.
package assistantagent
