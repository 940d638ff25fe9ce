// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /api/health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (duration_ms).

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(cfg.AllowedOrigin, mux),
	}

With an empty origin the request's own Origin header is reflected back
(dev mode); a configured origin is always sent as-is. Allows methods
GET, POST, PUT, DELETE, OPTIONS with headers Content-Type,
Authorization, X-User-Id.

# Caller Identity

Clients identify themselves with a self-assigned uid:

	uid := middleware.CurrentUID(r)
	if uid == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-User-Id header required")
		return
	}

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Parse JSON request bodies:

	var req models.CreateSessionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
*/
package middleware
