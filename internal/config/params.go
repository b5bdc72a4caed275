package config

// Params is an opaque set of backend generation parameters (temperature,
// max_tokens, stop, ...). Only "prompt" and "stop" are interpreted here.
type Params map[string]any

// Stop returns the configured stop sequences
func (p Params) Stop() []string {
	switch v := p["stop"].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

// Clone returns a copy that can be modified without touching p. Nested
// maps and slices are copied so per-call stop lists never leak back into
// the loaded configuration.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

// Request builds a per-call request body: a clone of p with the prompt set
// and extraStop appended to the configured stop sequences.
func (p Params) Request(prompt string, extraStop []string) Params {
	body := p.Clone()
	body["prompt"] = prompt
	stop := append(p.Stop(), extraStop...)
	if stop == nil {
		stop = []string{}
	}
	body["stop"] = stop
	return body
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case Params:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
