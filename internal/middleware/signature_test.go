package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func signatureRouter(secret string) (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	var seenBody string
	r := gin.New()
	r.POST("/callback", CallbackSignatureMiddleware(secret), func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		seenBody = string(body)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r, &seenBody
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCallbackSignatureMiddleware(t *testing.T) {
	const secret = "shh"
	const body = `{"Body":{"stkCallback":{"CheckoutRequestID":"X"}}}`

	t.Run("valid signature passes and body is preserved", func(t *testing.T) {
		r, seen := signatureRouter(secret)
		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
		req.Header.Set(SignatureHeader, sign(secret, body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if *seen != body {
			t.Errorf("handler saw body %q", *seen)
		}
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		r, _ := signatureRouter(secret)
		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})

	t.Run("wrong signature rejected", func(t *testing.T) {
		r, _ := signatureRouter(secret)
		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
		req.Header.Set(SignatureHeader, sign("wrong", body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})

	t.Run("empty secret disables verification", func(t *testing.T) {
		r, _ := signatureRouter("")
		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})
}
