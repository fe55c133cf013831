package metrics

import (
	"encoding/json"
	"net/http"
	"strconv"
)

func Handler(r *Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(r.Snapshot())
	})
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
