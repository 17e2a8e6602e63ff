package handlers

import (
	"context"
	"net/http"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/apierror"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/mw"
)

func writeError(w http.ResponseWriter, r *http.Request, status int, err *apierror.Error) {
	if err != nil && err.RequestID == "" {
		err.RequestID = requestIDFromContext(r.Context())
	}
	apierror.Write(w, status, err)
}

func requestIDFromContext(ctx context.Context) string {
	if id, ok := mw.RequestIDFrom(ctx); ok {
		return id
	}
	return ""
}
