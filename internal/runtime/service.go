package runtime

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-script/internal/script/eval"
)

// ServiceFunc handles one service call. data holds the call's keyword
// arguments as plain Go values.
type ServiceFunc func(ctx context.Context, data map[string]any) error

// Service is a callable registered under "domain.name".
type Service struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`

	// Description is the service metadata shown by the API: a
	// description and a map of field descriptions.
	Description map[string]any `json:"description,omitempty"`

	// Owner names the module that registered the service, if any.
	Owner string `json:"owner,omitempty"`

	Handler ServiceFunc `json:"-"`
}

// ID returns "domain.name".
func (s *Service) ID() string { return s.Domain + "." + s.Name }

// RegisterService adds or replaces a service.
func (r *Runtime) RegisterService(s Service) error {
	if s.Domain == "" || s.Name == "" || s.Handler == nil ||
		strings.Contains(s.Domain, ".") || strings.Contains(s.Name, ".") {
		return fmt.Errorf("%w: %q.%q", ErrInvalidService, s.Domain, s.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[s.ID()] = &s
	r.log.Debug("service registered", "service", s.ID(), "owner", s.Owner)
	return nil
}

// UnregisterService removes a service. Removing a missing service is a
// no-op.
func (r *Runtime) UnregisterService(domain, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, domain+"."+name)
}

// HasService reports whether domain.name is registered.
func (r *Runtime) HasService(domain, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.services[domain+"."+name]
	return ok
}

// Services returns the registered services sorted by id.
func (r *Runtime) Services() []Service {
	r.mu.RLock()
	out := make([]Service, 0, len(r.services))
	for _, id := range slices.Sorted(maps.Keys(r.services)) {
		out = append(out, *r.services[id])
	}
	r.mu.RUnlock()
	return out
}

// CallService invokes domain.name with data.
func (r *Runtime) CallService(ctx context.Context, domain, name string, data map[string]any) error {
	r.mu.RLock()
	s, ok := r.services[domain+"."+name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrServiceNotFound, domain, name)
	}
	if data == nil {
		data = map[string]any{}
	}
	if err := s.Handler(ctx, data); err != nil {
		return fmt.Errorf("calling service %s: %w", s.ID(), err)
	}
	return nil
}

// serviceCaller returns a script callable for the service id.
func (r *Runtime) serviceCaller(id string) *eval.Builtin {
	domain, name, _ := strings.Cut(id, ".")
	return &eval.Builtin{
		Name: id,
		Fn: func(c *eval.Context, args []eval.Value, kwargs *eval.Dict) (eval.Value, error) {
			if len(args) > 0 {
				return nil, eval.NewError(eval.TypeError, "service %s takes keyword arguments only", id)
			}
			return nil, r.callFromScript(c, domain, name, kwargs)
		},
	}
}

func (r *Runtime) callFromScript(c *eval.Context, domain, name string, kwargs *eval.Dict) error {
	data, _ := eval.ToNative(kwargs).(map[string]any)
	err := r.CallService(c.Context(), domain, name, data)
	if err != nil && !eval.IsCancel(err) {
		return eval.NewError(eval.RuntimeError, "%v", err)
	}
	return err
}
