package tagger

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

const policyQuery = "data.tag.tags"

// Policy overlays tags computed by rego rules in package tag. The rules see
// {"text", "action", "tags"} as input and produce an object under tags; its
// keys replace the heuristic tags.
type Policy struct {
	query *rego.PreparedEvalQuery
}

type printHook struct {
	ctx context.Context
}

func (h *printHook) Print(_ print.Context, message string) error {
	logging.Component(h.ctx, "tagger").Debug("rego print", "message", message)
	return nil
}

// LoadPolicy reads every *.rego file of dir. It returns nil when dir has no policy.
func LoadPolicy(ctx context.Context, dir string) (*Policy, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", dir))
	}
	if len(files) == 0 {
		return nil, nil
	}

	options := []func(*rego.Rego){rego.Query(policyQuery)}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare tag policy", goerr.V("dir", dir))
	}

	logging.From(ctx).Debug("tag policy loaded", "files", len(files))
	return &Policy{query: &prepared}, nil
}

// Apply evaluates the policy and merges its output into tags
func (p *Policy) Apply(ctx context.Context, text string, action model.Action, tags model.Tags) (model.Tags, error) {
	input := map[string]any{
		"text":   text,
		"action": string(action),
		"tags":   map[string]any(tags),
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&printHook{ctx: ctx}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate tag policy")
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return tags, nil
	}

	overlay, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, goerr.New("tag policy must produce an object",
			goerr.V("value", rs[0].Expressions[0].Value))
	}

	out := make(model.Tags, len(tags)+len(overlay))
	for k, v := range tags {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out, nil
}
