// utilitários pequenos para formatação consistente de headers e corpos de erro.

package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// formatSeconds trunca para segundos inteiros, como Retry-After espera.
func formatSeconds(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10)
}

// writeJSONError responde {"error": msg} com o status dado.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	body, err := sonic.Marshal(errorBody{Error: msg})
	if err != nil {
		http.Error(w, msg, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
