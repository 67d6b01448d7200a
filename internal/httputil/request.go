package httputil

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GetPositiveIntQueryParameter reads a positive integer from the key query
// parameter, fallback if the parameter is missing. On an invalid value, it
// writes a 400 status code and the reason into the ResponseWriter and returns
// false.
func GetPositiveIntQueryParameter(w http.ResponseWriter, r *http.Request, key string, fallback int) (int, zerolog.Logger, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, log.With().Int(key, fallback).Logger(), true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		http.Error(w, fmt.Sprintf("expected %s to be a positive integer", key), http.StatusBadRequest)
		return 0, zerolog.Nop(), false
	}
	return v, log.With().Int(key, v).Logger(), true
}
