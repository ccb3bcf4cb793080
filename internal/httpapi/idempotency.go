package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"bus-booking/internal/auth"
	"bus-booking/pkg/logger"
	"bus-booking/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 128
	maxIdempotentBody    = 1 << 20
)

type storedResponse struct {
	BodyHash    string `json:"body_hash"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// idempotencyStore keeps claimed keys and completed responses.
type idempotencyStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) ([]byte, bool, error)
	Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

type redisIdempotency struct{ rdb *redis.Client }

func (r redisIdempotency) Claim(ctx context.Context, key string, ttl time.Duration) ([]byte, bool, error) {
	return utils.ClaimIdempotencyKey(ctx, r.rdb, key, ttl)
}

func (r redisIdempotency) Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return utils.CompleteIdempotencyKey(ctx, r.rdb, key, response, ttl)
}

func (r redisIdempotency) Release(ctx context.Context, key string) error {
	return utils.ReleaseIdempotencyKey(ctx, r.rdb, key)
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response of a completed request carrying the
// same Idempotency-Key and rejects a concurrent duplicate with 409. A key
// reused with a different request body gets 422. Only 2xx
// responses are stored; failures release the key so the client can retry.
// Requests without the header pass through, and so does everything when
// Redis is unavailable.
func Idempotency(rdb *redis.Client, scope string, ttl time.Duration) gin.HandlerFunc {
	if rdb == nil {
		return idempotency(nil, scope, ttl)
	}
	return idempotency(redisIdempotency{rdb: rdb}, scope, ttl)
}

func idempotency(store idempotencyStore, scope string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if raw == "" || store == nil {
			c.Next()
			return
		}
		if len(raw) > maxIdempotencyKeyLen {
			badRequest(c, "Idempotency-Key too long")
			return
		}

		hash, err := bodyHash(c)
		if err != nil {
			badRequest(c, "request body too large or unreadable")
			return
		}

		ctx := c.Request.Context()
		log := logger.From(ctx)
		uid, _ := auth.UserID(ctx)
		key := utils.IdempotencyKey(scope, uid, raw)

		stored, owner, err := store.Claim(ctx, key, ttl)
		switch {
		case errors.Is(err, utils.ErrIdempotencyInFlight):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this Idempotency-Key is still in progress"})
			return
		case err != nil:
			log.Warn("idempotency store unavailable, continuing without it", "err", err)
			c.Next()
			return
		case !owner:
			var resp storedResponse
			if err := json.Unmarshal(stored, &resp); err != nil {
				log.Warn("corrupt idempotency record", "err", err)
				c.Next()
				return
			}
			if resp.BodyHash != hash {
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity,
					gin.H{"error": "Idempotency-Key was already used with a different request body"})
				return
			}
			c.Header(HeaderReplayed, "true")
			c.Data(resp.Status, resp.ContentType, resp.Body)
			c.Abort()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()

		status := w.Status()
		if status < 200 || status >= 300 {
			if err := store.Release(sctx, key); err != nil {
				log.Warn("idempotency release failed", "err", err)
			}
			return
		}
		payload, err := json.Marshal(storedResponse{
			BodyHash:    hash,
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		})
		if err == nil {
			err = store.Complete(sctx, key, payload, ttl)
		}
		if err != nil {
			log.Warn("idempotency store failed", "err", err)
		}
	}
}

// bodyHash fingerprints the request body and puts it back for the handler.
func bodyHash(c *gin.Context) (string, error) {
	if c.Request.Body == nil {
		return "", nil
	}
	b, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotentBody+1))
	if err != nil {
		return "", err
	}
	if len(b) > maxIdempotentBody {
		return "", errors.New("body too large")
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(b))
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
