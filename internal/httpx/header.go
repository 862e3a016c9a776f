package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/net/http/httpguts"
)

// InvalidHeaderError reports a computed header value that cannot be sent.
type InvalidHeaderError struct {
	Name string
}

func (e *InvalidHeaderError) Error() string {
	return fmt.Sprintf("invalid value for header %q", e.Name)
}

// SetHeader validates value before setting it on h.
func SetHeader(h http.Header, name, value string) error {
	if !httpguts.ValidHeaderFieldValue(value) {
		return &InvalidHeaderError{Name: name}
	}
	h.Set(name, value)
	return nil
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
