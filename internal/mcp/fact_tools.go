package mcp

import (
	"context"
	"fmt"

	"containernerd-mcp-server/internal/mangle"
)

// QueryFactsTool runs a Mangle query over the deletion diagnostics.
type QueryFactsTool struct {
	engine *mangle.Engine
}

func (t *QueryFactsTool) Name() string { return "query-facts" }
func (t *QueryFactsTool) Description() string {
	return `Run a Mangle query against deletion diagnostics.

EXAMPLES:
- container_suspicious(Id).
- container_removed(Id).
- container_delete_aborted(Id, Reason, Ts).

Returns: {results: [{Var: value}], count}`
}
func (t *QueryFactsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Mangle query atom ending with a period",
			},
		},
		"required": []string{"query"},
	}
}
func (t *QueryFactsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query := getStringArg(args, "query")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	results, err := t.engine.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"results": results,
		"count":   len(results),
	}, nil
}

// ReadFactsTool returns the most recent buffered facts.
type ReadFactsTool struct {
	engine *mangle.Engine
}

func (t *ReadFactsTool) Name() string { return "read-facts" }
func (t *ReadFactsTool) Description() string {
	return `Read the most recent diagnostic facts, newest last.

Returns: {facts: [{predicate, args, timestamp}], count}`
}
func (t *ReadFactsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"predicate": map[string]interface{}{
				"type":        "string",
				"description": "Only facts with this predicate",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of facts (default 50)",
			},
		},
	}
}
func (t *ReadFactsTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	limit := getIntArg(args, "limit", 50)
	if limit <= 0 {
		limit = 50
	}

	var facts []mangle.Fact
	if predicate := getStringArg(args, "predicate"); predicate != "" {
		facts = t.engine.FactsByPredicate(predicate)
	} else {
		facts = t.engine.Facts()
	}
	if len(facts) > limit {
		facts = facts[len(facts)-limit:]
	}
	return map[string]interface{}{
		"facts": facts,
		"count": len(facts),
	}, nil
}
