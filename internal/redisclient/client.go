package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const sessionTTL = 30 * 24 * time.Hour

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Session holds the identity attached to a browser session. Anonymous
// sessions (UserID zero) still own a guest cart keyed by the session id.
type Session struct {
	ID     string
	UserID int64
	Role   string
}

// NewSessionID provisions a fresh opaque session id.
func NewSessionID() string {
	return uuid.New().String()
}

// PutSession stores a session hash with a sliding TTL.
func (c *Client) PutSession(ctx context.Context, sess *Session) error {
	key := fmt.Sprintf("session:%s", sess.ID)
	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "user_id", sess.UserID, "role", sess.Role)
	pipe.Expire(ctx, key, sessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetSession loads a session by id; a missing key yields an anonymous
// session with the same id.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	key := fmt.Sprintf("session:%s", sessionID)
	fields, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	sess := &Session{ID: sessionID}
	if uid, ok := fields["user_id"]; ok {
		sess.UserID, _ = strconv.ParseInt(uid, 10, 64)
	}
	sess.Role = fields["role"]
	return sess, nil
}

// SetCheckoutSelection replaces the session's selected cart line ids.
func (c *Client) SetCheckoutSelection(ctx context.Context, sessionID string, lineIDs []int64) error {
	key := fmt.Sprintf("checkout:%s", sessionID)
	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, key)
	if len(lineIDs) > 0 {
		members := make([]interface{}, len(lineIDs))
		for i, id := range lineIDs {
			members[i] = id
		}
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, 24*time.Hour)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// CheckoutSelection returns the session's selected cart line ids; empty
// means checkout consumes the whole cart.
func (c *Client) CheckoutSelection(ctx context.Context, sessionID string) ([]int64, error) {
	key := fmt.Sprintf("checkout:%s", sessionID)
	members, err := c.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ClearCheckoutSelection drops the selection after placement consumed it.
func (c *Client) ClearCheckoutSelection(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("checkout:%s", sessionID)).Err()
}

// SetLatestOrder records the thank-you screen handoff: the last order number
// and a coarse delivery ETA.
func (c *Client) SetLatestOrder(ctx context.Context, sessionID, orderNumber, eta string) error {
	key := fmt.Sprintf("lastorder:%s", sessionID)
	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "order_number", orderNumber, "eta", eta)
	pipe.Expire(ctx, key, 24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// LatestOrder returns the last order number and ETA stored for the session.
func (c *Client) LatestOrder(ctx context.Context, sessionID string) (orderNumber, eta string, err error) {
	fields, err := c.rdb.HGetAll(ctx, fmt.Sprintf("lastorder:%s", sessionID)).Result()
	if err != nil {
		return "", "", err
	}
	return fields["order_number"], fields["eta"], nil
}

func stockKey(productID int64) string {
	return fmt.Sprintf("stock:%d", productID)
}

// SetStockMatrix replaces the cached per-variant stock for a product. Fields
// are "color|size" pairs.
func (c *Client) SetStockMatrix(ctx context.Context, productID int64, matrix map[string]map[string]int) error {
	key := stockKey(productID)
	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, key)
	for color, sizes := range matrix {
		for size, stock := range sizes {
			pipe.HSet(ctx, key, color+"|"+size, stock)
		}
	}
	pipe.Expire(ctx, key, time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// StockMatrix reads the cached stock for a product; a missing key returns
// nil so callers fall back to the database.
func (c *Client) StockMatrix(ctx context.Context, productID int64) (map[string]map[string]int, error) {
	fields, err := c.rdb.HGetAll(ctx, stockKey(productID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	matrix := make(map[string]map[string]int)
	for field, raw := range fields {
		parts := strings.SplitN(field, "|", 2)
		if len(parts) != 2 {
			continue
		}
		stock, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		if matrix[parts[0]] == nil {
			matrix[parts[0]] = make(map[string]int)
		}
		matrix[parts[0]][parts[1]] = stock
	}
	return matrix, nil
}

// InvalidateStock drops a product's cached stock.
func (c *Client) InvalidateStock(ctx context.Context, productID int64) error {
	return c.rdb.Del(ctx, stockKey(productID)).Err()
}
