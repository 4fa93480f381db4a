package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"dineflow-order-service/internal/auth"

	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	StaffID      int64
	RestaurantID int64
	Role         auth.StaffRole
	Email        string
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	writeAuthErrorDebug(w, status, message, "")
}

func writeAuthErrorDebug(w http.ResponseWriter, status int, message string, debug string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload := map[string]any{
		"success": false,
		"error":   "UNAUTHORIZED",
		"message": message,
	}

	if os.Getenv("APP_ENV") == "development" && strings.TrimSpace(debug) != "" {
		payload["debug"] = debug
	}

	_ = json.NewEncoder(w).Encode(payload)
}

// StaffAuth verifies the bearer token and confirms the staff member is still
// active and attached to an active restaurant before letting the request
// through.
func StaffAuth(db *pgxpool.Pool, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Authorization token required", err.Error())
				return
			}

			staffID, err := parseInt64(claims.StaffID)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			restaurantID, err := parseInt64(claims.RestaurantID)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			var (
				staffActive      bool
				restaurantActive bool
			)
			query := `
				select s.is_active, rst.is_active
				from staff s
				join restaurants rst on rst.id = s.restaurant_id
				where s.id = $1 and s.restaurant_id = $2
			`
			err = db.QueryRow(r.Context(), query, staffID, restaurantID).Scan(&staffActive, &restaurantActive)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Staff access required", err.Error())
				return
			}

			if !staffActive {
				writeAuthError(w, http.StatusForbidden, "Staff access is disabled")
				return
			}
			if !restaurantActive {
				writeAuthError(w, http.StatusForbidden, "Restaurant is currently disabled")
				return
			}

			authCtx := &AuthContext{
				StaffID:      staffID,
				RestaurantID: restaurantID,
				Role:         claims.Role,
				Email:        claims.Email,
			}

			ctx := WithAuthContext(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseInt64(value string) (int64, error) {
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}
