package api

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/nerrad567/gray-logic-script/internal/loader"
	"github.com/nerrad567/gray-logic-script/internal/script/eval"
	"github.com/nerrad567/gray-logic-script/internal/script/parser"
)

// evalTimeout bounds one POST /eval request.
const evalTimeout = 10 * time.Second

const evalFilename = "<api>"

// handleListFunctions lists script functions. With ?q= the list is
// filtered by fuzzy match on "module.name" and ordered best match first.
func (s *Server) handleListFunctions(w http.ResponseWriter, r *http.Request) {
	funcs := s.scripts.Functions()
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		funcs = searchFunctions(q, funcs)
	}
	if funcs == nil {
		funcs = []loader.FunctionInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"functions": funcs,
		"count":     len(funcs),
	})
}

func searchFunctions(q string, funcs []loader.FunctionInfo) []loader.FunctionInfo {
	targets := make([]string, len(funcs))
	for i, f := range funcs {
		targets[i] = f.Module + "." + f.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(q, targets)
	sort.Stable(ranks)

	out := make([]loader.FunctionInfo, 0, len(ranks))
	for _, rk := range ranks {
		out = append(out, funcs[rk.OriginalIndex])
	}
	return out
}

func (s *Server) handleListTriggers(w http.ResponseWriter, _ *http.Request) {
	triggers := s.scripts.Triggers()
	writeJSON(w, http.StatusOK, map[string]any{
		"triggers": triggers,
		"count":    len(triggers),
	})
}

// handleReload recompiles the script folder.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.scripts.Reload(context.WithoutCancel(r.Context())); err != nil {
		s.logger.Error("script reload failed", "error", err)
		fail(w, CodeReloadFailed, "%s", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded":  true,
		"functions": len(s.scripts.Functions()),
		"triggers":  len(s.scripts.Triggers()),
	})
}

type evalRequest struct {
	Source string `json:"source"`
}

type evalResponse struct {
	Result string `json:"result"`
	Value  any    `json:"value"`
}

// handleEval runs source in a fresh global scope and returns the value of
// its last expression statement.
func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	var req evalRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, CodeInvalidBody, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		fail(w, CodeMissingField, "source is required")
		return
	}

	tree, err := parser.Parse(req.Source, evalFilename)
	if err != nil {
		writeError(w, scriptError(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), evalTimeout)
	defer cancel()

	c := s.rt.NewContext(ctx, "api.eval", evalFilename, eval.NewSymTable())
	v := c.Eval(tree, nil)
	if e := c.Err(); e != nil {
		writeError(w, scriptError(e))
		return
	}
	if ctx.Err() != nil {
		fail(w, CodeEvalTimeout, "evaluation timed out after %s", evalTimeout)
		return
	}

	native := eval.ToNative(v)
	if f, ok := native.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		native = eval.Repr(v)
	}
	writeJSON(w, http.StatusOK, evalResponse{Result: eval.Repr(v), Value: native})
}
