package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const ctxSpendKey contextKey = "parsed_spend"

// parsedSpend is stored in context so the handler can read the price
// without re-parsing the body.
type parsedSpend struct {
	PriceTokens int `json:"price_tokens"`
}

// SpendFromCtx returns the price parsed by SpendLimit, or 0 if not set.
func SpendFromCtx(ctx context.Context) int {
	if s, ok := ctx.Value(ctxSpendKey).(*parsedSpend); ok {
		return s.PriceTokens
	}
	return 0
}

// SpendLimit enforces the user's per-order spending cap on order creation.
// Reads the body to extract "price_tokens", then replaces r.Body so
// downstream handlers can re-read it.
func SpendLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromCtx(r.Context())
			if user == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			bodyBytes, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
				return
			}
			// Restore body for the handler.
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var peek parsedSpend
			if err := json.Unmarshal(bodyBytes, &peek); err != nil {
				http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
				return
			}
			if peek.PriceTokens <= 0 {
				http.Error(w, `{"error":"price_tokens must be > 0"}`, http.StatusBadRequest)
				return
			}

			if user.MaxPerOrder != nil && peek.PriceTokens > *user.MaxPerOrder {
				http.Error(w, fmt.Sprintf(`{"error":"price %d exceeds per-order limit %d"}`, peek.PriceTokens, *user.MaxPerOrder), http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), ctxSpendKey, &peek)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
