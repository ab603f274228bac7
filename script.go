package worker

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

// Script is the user-supplied worker source plus its environment mapping,
// exposed to the script as the read-only global `env`.
type Script struct {
	Code string
	Env  map[string]string

	// TypeScript selects the TypeScript loader. Only ES module syntax is
	// detected from the source; TypeScript is not.
	TypeScript bool
}

// NewScript wraps plain JavaScript source with an empty environment.
func NewScript(code string) Script {
	return Script{Code: code}
}

func (s Script) envJSON() string {
	env := s.Env
	if env == nil {
		env = map[string]string{}
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// reModuleSyntax matches top-level import/export statements, the signal
// that the source needs lowering before it can run as a classic script.
var reModuleSyntax = regexp.MustCompile(`(?m)^\s*(import\s|import\(|export\s)`)

// prepare lowers the source to a plain script the isolate can evaluate
// directly: TypeScript is transpiled and ES module syntax is converted
// into an IIFE by a single-file transform (imports are not bundled).
// Plain JavaScript passes through untouched.
func (s Script) prepare() (string, error) {
	if !s.TypeScript && !reModuleSyntax.MatchString(s.Code) {
		return s.Code, nil
	}

	loader := esbuild.LoaderJS
	if s.TypeScript {
		loader = esbuild.LoaderTS
	}
	result := esbuild.Transform(s.Code, esbuild.TransformOptions{
		Loader: loader,
		Format: esbuild.FormatIIFE,
		Target: esbuild.ES2022,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			msgs = append(msgs, m.Text)
		}
		return "", fmt.Errorf("transforming script: %s", strings.Join(msgs, "; "))
	}
	return string(result.Code), nil
}
