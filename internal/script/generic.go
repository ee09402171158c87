package script

// Rule is one config-driven classification rule: entities holding every tag
// in Match (value equality) are emitted into Layer. The CLI collects these
// rules into the RuleProgram it always runs — the Go-native stand-in for
// the original's per-project Lua script,
// per SPEC_FULL.md's "script.Program, not an embedded VM" resolution (see
// DESIGN.md). A config author describes classification declaratively
// through layers.<name>.match in the JSON config (or a standalone rules
// file named by --process) instead of writing script code.
type Rule struct {
	Layer string `json:"layer"`
	// Area controls the emitted geom_kind for way entities: POLYGON when
	// true, LINESTRING when false. Relations always emit POLYGON
	// regardless of this flag.
	Area bool `json:"area"`
	// Match lists tag keys that must be present; if a value is non-empty
	// the tag's value must equal it exactly, if empty any value matches
	// (mirrors the common "holds(key)" style check of §4.3's API).
	Match map[string]string `json:"match"`
	// Attributes lists tag keys copied onto the emitted feature as string
	// attributes, when present on the entity.
	Attributes []string `json:"attributes"`
	// Nodes/Ways/Relations gate which entity kinds this rule considers.
	Nodes     bool `json:"nodes"`
	Ways      bool `json:"ways"`
	Relations bool `json:"relations"`
}

func (r Rule) matches(ctx *Context) bool {
	for k, v := range r.Match {
		if !ctx.Holds(k) {
			return false
		}
		if v != "" && ctx.Find(k) != v {
			return false
		}
	}
	return true
}

func (r Rule) apply(ctx *Context) {
	switch ctx.kind {
	case KindNode:
		ctx.Layer(r.Layer, false)
	case KindWay:
		ctx.Layer(r.Layer, r.Area)
	case KindRelation:
		ctx.Layer(r.Layer, true)
	}
	for _, key := range r.Attributes {
		if ctx.Holds(key) {
			ctx.Attribute(key, ctx.Find(key))
		}
	}
}

// RuleProgram is a Program driven entirely by a Rule list: one script-host
// round-trip tests every rule against the current entity and emits a
// feature per match (an entity may land in more than one layer, matching
// the original's "call layer() as many times as you like" scripting
// idiom).
type RuleProgram struct {
	Rules    []Rule
	nodeKeys []string
}

// NewRuleProgram builds a RuleProgram, precomputing the NodeKeys() hint
// from the Match keys of every rule with Nodes set (the extractor's cheap "is this node worth
// looking at" pre-filter, spec §6's node_keys).
func NewRuleProgram(rules []Rule) *RuleProgram {
	seen := make(map[string]struct{})
	var keys []string
	for _, r := range rules {
		if !r.Nodes {
			continue
		}
		for k := range r.Match {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	return &RuleProgram{Rules: rules, nodeKeys: keys}
}

func (p *RuleProgram) NodeKeys() []string { return p.nodeKeys }

func (p *RuleProgram) ProcessNode(ctx *Context) {
	for _, r := range p.Rules {
		if r.Nodes && r.matches(ctx) {
			r.apply(ctx)
		}
	}
}

func (p *RuleProgram) ProcessWay(ctx *Context) {
	for _, r := range p.Rules {
		if r.Ways && r.matches(ctx) {
			r.apply(ctx)
		}
	}
}

func (p *RuleProgram) ProcessRelation(ctx *Context) {
	for _, r := range p.Rules {
		if r.Relations && r.matches(ctx) {
			r.apply(ctx)
		}
	}
}

var _ Program = (*RuleProgram)(nil)
