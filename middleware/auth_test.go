package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AnTengye/creditreport/config"
	"github.com/AnTengye/creditreport/model"
	"github.com/AnTengye/creditreport/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testAuthConfig = &config.AuthConfig{
	JWTSecret:        "test-secret-key",
	TokenExpireHours: 24,
}

var testUser = &model.User{ID: "user-1", Email: "jane@example.com", Role: model.RoleUser}

func TestGenerateToken(t *testing.T) {
	token, expiresAt, err := GenerateToken(testUser, testAuthConfig)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if token == "" {
		t.Error("Expected non-empty token")
	}

	// Verify expiration time is approximately 24 hours from now
	expectedExpiry := time.Now().Add(24 * time.Hour)
	if expiresAt.Before(expectedExpiry.Add(-time.Minute)) || expiresAt.After(expectedExpiry.Add(time.Minute)) {
		t.Errorf("Expiry time %v is not within expected range of %v", expiresAt, expectedExpiry)
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testAuthConfig.JWTSecret), nil
	})
	if err != nil {
		t.Fatalf("Failed to parse token: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "jane@example.com" || claims.Role != model.RoleUser {
		t.Errorf("Unexpected claims: %+v", claims)
	}
}

func signClaims(t *testing.T, claims Claims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

func TestAuthMiddleware(t *testing.T) {
	token, _, err := GenerateToken(testUser, testAuthConfig)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	expired := signClaims(t, Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}, jwt.SigningMethodHS256, []byte(testAuthConfig.JWTSecret))

	wrongSecret := signClaims(t, Claims{UserID: "user-1"}, jwt.SigningMethodHS256, []byte("other-secret"))
	noUser := signClaims(t, Claims{Email: "x@example.com"}, jwt.SigningMethodHS256, []byte(testAuthConfig.JWTSecret))
	unsigned := signClaims(t, Claims{UserID: "user-1"}, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name            string
		authHeader      string
		expectedStatus  int
		expectedMessage string
	}{
		{"valid token", "Bearer " + token, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "Please login to access this resource"},
		{"invalid format", token, http.StatusUnauthorized, "Invalid authorization header format"},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, "Invalid authorization header format"},
		{"invalid token", "Bearer invalid.token.here", http.StatusUnauthorized, "Invalid token"},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, "Invalid token"},
		{"wrong secret", "Bearer " + wrongSecret, http.StatusUnauthorized, "Invalid token"},
		{"missing user id", "Bearer " + noUser, http.StatusUnauthorized, "Invalid token"},
		{"none algorithm", "Bearer " + unsigned, http.StatusUnauthorized, "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(AuthMiddleware(testAuthConfig))
			router.GET("/test", func(c *gin.Context) {
				ctxUser, _ := c.Request.Context().Value(logger.UserIDKey).(string)
				c.JSON(http.StatusOK, gin.H{
					"user_id":  GetUserID(c),
					"email":    GetEmail(c),
					"role":     GetRole(c),
					"ctx_user": ctxUser,
				})
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			var body map[string]interface{}
			json.Unmarshal(w.Body.Bytes(), &body)
			if tt.expectedStatus == http.StatusOK {
				if body["user_id"] != "user-1" || body["email"] != "jane@example.com" || body["role"] != "user" {
					t.Errorf("Unexpected identity: %v", body)
				}
				if body["ctx_user"] != "user-1" {
					t.Errorf("Expected user id in request context, got %v", body["ctx_user"])
				}
				return
			}
			if body["success"] != false || body["message"] != tt.expectedMessage {
				t.Errorf("Expected message '%s', got %v", tt.expectedMessage, body)
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	admin := &model.User{ID: "admin-1", Email: "admin@example.com", Role: model.RoleAdmin}

	tests := []struct {
		name           string
		user           *model.User
		expectedStatus int
	}{
		{"admin allowed", admin, http.StatusOK},
		{"user forbidden", testUser, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _, _ := GenerateToken(tt.user, testAuthConfig)

			router := gin.New()
			router.Use(AuthMiddleware(testAuthConfig), AdminOnly())
			router.GET("/admin", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"message": "ok"})
			})

			req := httptest.NewRequest("GET", "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestIdentityGettersEmpty(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if GetUserID(c) != "" || GetEmail(c) != "" || GetRole(c) != "" {
		t.Error("Expected empty identity for unauthenticated context")
	}

	c.Set(ctxUserID, 42)
	if GetUserID(c) != "" {
		t.Error("Expected non-string value to be ignored")
	}
}
