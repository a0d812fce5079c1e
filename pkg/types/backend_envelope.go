package types

// BackendEnvelope is the wrapper every purchasing backend response is delivered in.
type BackendEnvelope[T any] struct {
	Status  any    `json:"status"`
	Message string `json:"message"`
	Result  T      `json:"result"`
	Error   any    `json:"error"`
}

// Failed reports whether the envelope signals an application-level failure.
func (e BackendEnvelope[T]) Failed() bool {
	switch v := e.Status.(type) {
	case bool:
		if !v {
			return true
		}
	case string:
		if v == "error" || v == "fail" || v == "failed" {
			return true
		}
	case float64:
		if v >= 400 {
			return true
		}
	}
	switch v := e.Error.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	default:
		return true
	}
}
