package kernel

import (
	"github.com/bmatcuk/doublestar/v4"
)

// toolSchemaIndex speeds up destructive/network/cost lookups by name.
type toolSchemaIndex map[string]ToolSchema

func buildToolSchemaIndex(schemas []ToolSchema) toolSchemaIndex {
	idx := make(toolSchemaIndex, len(schemas))
	for _, s := range schemas {
		idx[s.Name] = s
	}
	return idx
}

// requiresApproval decides whether a CallTool intent for tool must be
// preceded by a RequestApproval intent, per spec §4.1 step 5 and the
// approval policy of §3 Configuration.
func requiresApproval(policy ApprovalPolicy, schemas toolSchemaIndex, tool string) (bool, string) {
	if matchesAny(policy.ToolAllowlist, tool) {
		return true, "tool matches approval allowlist pattern"
	}

	schema, known := schemas[tool]
	if policy.RequireForDestructive && known && schema.Destructive {
		return true, "tool is marked destructive"
	}
	if policy.RequireForNetwork && known && schema.Network {
		return true, "tool is marked network-capable"
	}
	if policy.CostThreshold > 0 && known && schema.CostEstimate > policy.CostThreshold {
		return true, "tool cost estimate exceeds policy threshold"
	}
	return false, ""
}

// matchesAny reports whether name matches any of the doublestar glob
// patterns in patterns.
func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// ToolAllowed applies the tool allow/block lists of spec §3 Configuration.
// An empty allowlist means "all tools allowed unless blocked". Exported so
// the runtime can re-check policy at execution time, defense in depth
// against a kernel that already filtered at decision time.
func ToolAllowed(policy ToolPolicy, name string) bool {
	if matchesAny(policy.Block, name) {
		return false
	}
	if len(policy.Allow) == 0 {
		return true
	}
	return matchesAny(policy.Allow, name)
}
