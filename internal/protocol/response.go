package protocol

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Response is one reply object.  It is a map so that every action can add
// its own top-level payload key next to "status".
type Response map[string]any

// OK starts a success response.
func OK() Response { return Response{"status": StatusOK} }

// Message starts a success response carrying a message.
func Message(msg string) Response { return Response{"status": StatusOK, "message": msg} }

// With sets key and returns r for chaining.
func (r Response) With(key string, value any) Response {
	r[key] = value
	return r
}

// Status returns the "status" field.
func (r Response) Status() string {
	s, _ := r["status"].(string)
	return s
}

// IsOK reports whether the response is a success.
func (r Response) IsOK() bool { return r.Status() == StatusOK }

// Code returns "ok" for a success and the error kind code otherwise.
func (r Response) Code() string {
	if r.IsOK() {
		return StatusOK
	}
	if c := r.Text("code"); c != "" {
		return c
	}
	return StatusError
}

// Text returns a string field, or "" when absent or not a string.
func (r Response) Text(key string) string {
	s, _ := r[key].(string)
	return s
}

// Number returns a numeric field as uint64.  Decoded responses hold
// float64; responses built in process hold integer types.
func (r Response) Number(key string) (uint64, bool) {
	switch v := r[key].(type) {
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case uint64:
		return v, true
	case ID:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	}
	return 0, false
}
