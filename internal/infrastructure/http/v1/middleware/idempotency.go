package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"bakery/internal/core/apperror"
	appctx "bakery/internal/core/context"
	"bakery/internal/core/idempotency"
	"bakery/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

// capturingWriter keeps a copy of the response body for replay.
type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response of a mutating request that carries
// an X-Idempotency-Key already seen for the same user, route and body.
// Responses below 500 are stored; server errors release the key for retry.
func Idempotency(store idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)

		ctx := c.Request.Context()
		replay, err := store.Acquire(ctx, idempotency.Request{
			Key:       key,
			UserID:    appctx.GetUserID(ctx),
			Operation: c.Request.Method + " " + c.FullPath(),
			Hash:      hex.EncodeToString(hash[:]),
		})
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}

		if replay != nil {
			r := replay.Normalize()
			c.Header("Idempotent-Replayed", "true")
			c.Data(r.StatusCode, r.ContentType, r.Body)
			c.Abort()
			return
		}

		w := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		// Render a pending error here so its body is captured.
		writeError(c)

		status := w.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Release(ctx, key); err != nil {
				logger.Warn(ctx, "idempotency release failed", "key", key, "error", err)
			}
			return
		}

		result := idempotency.StatusSuccess
		if status >= http.StatusBadRequest {
			result = idempotency.StatusFailed
		}
		resp := idempotency.Replay{
			StatusCode:  status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		}
		if err := store.Complete(ctx, key, result, resp); err != nil {
			logger.Warn(ctx, "idempotency complete failed", "key", key, "error", err)
		}
	}
}
