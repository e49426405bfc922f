package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/train-seat-reservation/internal/config"
)

// bodyRecorder tees the response to the client while keeping a bounded
// copy for the cache. Seat-map bodies are small; the limit is a guard
// against caching an unexpectedly large payload.
type bodyRecorder struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (br *bodyRecorder) WriteHeader(code int) {
    br.status = code
    br.ResponseWriter.WriteHeader(code)
}

func (br *bodyRecorder) Write(b []byte) (int, error) {
    if br.limit <= 0 {
        br.buf.Write(b)
    } else if remain := br.limit - br.size; remain > 0 {
        if int64(len(b)) <= remain {
            br.buf.Write(b)
        } else {
            br.buf.Write(b[:remain])
        }
    }
    br.size += int64(len(b))
    return br.ResponseWriter.Write(b)
}

// cachedResponse is what gets stored in Redis: status, headers and body
// together, so a HIT replays the original response byte for byte.
type cachedResponse struct {
    status int
    header http.Header
    body   []byte
}

// encode packs the response as [4B status][4B headerLen][headerJSON][body].
func (cr cachedResponse) encode() ([]byte, error) {
    hdrJSON, err := json.Marshal(cr.header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(cr.body))
    binary.BigEndian.PutUint32(out[0:4], uint32(cr.status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:], hdrJSON)
    copy(out[8+len(hdrJSON):], cr.body)
    return out, nil
}

func decodeCachedResponse(bs []byte) (cachedResponse, bool) {
    if len(bs) < 8 {
        return cachedResponse{}, false
    }
    status := int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return cachedResponse{}, false
    }
    hdr := make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
            return cachedResponse{}, false
        }
    }
    return cachedResponse{status: status, header: hdr, body: bs[8+hlen:]}, true
}

// browseCacheKey hashes the request attributes selected by the
// configured strategy under the cache prefix. Journey list and seat-map
// URLs differ only in path and query, so the default strategy is
// route+query.
func browseCacheKey(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()

    parts := []string{}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = append(parts, "route", c.Path())
    case "method_route":
        parts = append(parts, "method", r.Method, "route", c.Path())
    case "method_route_query":
        parts = append(parts, "method", r.Method, "route", c.Path(), "q", r.URL.RawQuery)
    default: // "route_query"
        parts = append(parts, "route", c.Path(), "q", r.URL.RawQuery)
    }

    sum := sha1.Sum([]byte(strings.Join(parts, ":")))
    return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// NewRedisCache caches journey browse responses for a short TTL. Seat
// availability changes on every allocation, so entries are brief and a
// seat shown free can already be gone; the booking transaction is what
// decides. Requests carrying an Authorization header bypass the cache
// entirely so a passenger mid-booking always reads committed state.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return func(c echo.Context) error { return next(c) } }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 10 * time.Second
    }
    maxBody := int64(cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            if c.Request().Header.Get("Authorization") != "" {
                return next(c)
            }

            ctx := c.Request().Context()
            key := browseCacheKey(cfg, c)

            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                if cr, ok := decodeCachedResponse(bs); ok {
                    for k, vals := range cr.header {
                        // Echo recomputes Content-Length from the replayed body.
                        if strings.EqualFold(k, "Content-Length") {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(cr.status)
                    if len(cr.body) > 0 {
                        _, _ = c.Response().Write(cr.body)
                    }
                    return nil
                }
            }

            br := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = br
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }

            // Only successful, fully captured responses are stored;
            // anything that overflowed the limit is served uncached.
            if br.status == http.StatusOK && (maxBody <= 0 || br.size <= maxBody) {
                hdr := make(http.Header, len(c.Response().Header()))
                for k, vals := range c.Response().Header() {
                    hdr[k] = append([]string(nil), vals...)
                }
                cr := cachedResponse{status: br.status, header: hdr, body: br.buf.Bytes()}
                if payload, err := cr.encode(); err == nil {
                    _ = rdb.SetEx(context.Background(), key, payload, ttl).Err()
                }
            }
            return nil
        }
    }
}
