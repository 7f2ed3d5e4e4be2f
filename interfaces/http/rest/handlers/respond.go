package handlers

import (
	"encoding/json"
	"net/http"

	pkgerrors "districtgraph/pkg/errors"
	"districtgraph/pkg/utils"

	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// decodeAndValidate reads a JSON body into dst and checks its tags
func decodeAndValidate(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return pkgerrors.NewInvalidArgumentError("invalid request body: " + err.Error())
	}
	return utils.ValidateStruct(dst)
}
