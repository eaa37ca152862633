package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"breadcrumbs/internal/config"
)

const (
	defaultRedisTimeout = 5 * time.Second
	scanBatch           = 200
)

// RedisStore implements Store using a minimal RESP client. Each call dials a fresh
// connection.
type RedisStore struct {
	addr     string
	password string
	db       int
	timeout  time.Duration
}

// NewRedisStore creates a store backed by Redis.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("redis host is required")
	}
	port := cfg.Port
	if port == "" {
		port = "6379"
	}
	return &RedisStore{
		addr:     net.JoinHostPort(cfg.Host, port),
		password: cfg.Password,
		db:       cfg.DB,
		timeout:  cfg.Timeout.Or(defaultRedisTimeout),
	}, nil
}

func (s *RedisStore) Close() error {
	return nil
}

// Ping verifies connectivity and credentials.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.withConn(ctx, func(conn *redisConn) error {
		if err := conn.send("PING"); err != nil {
			return err
		}
		_, err := conn.read()
		return err
	})
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := s.withConn(ctx, func(conn *redisConn) error {
		if err := conn.send("GET", key); err != nil {
			return err
		}
		reply, err := conn.read()
		if err != nil {
			return err
		}
		switch v := reply.(type) {
		case nil:
			found = false
		case string:
			value = []byte(v)
			found = true
		default:
			return fmt.Errorf("unexpected response type %T", v)
		}
		return nil
	})
	return value, found, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := []string{key, string(value)}
	if ms := ttl.Milliseconds(); ms > 0 {
		args = append(args, "PX", strconv.FormatInt(ms, 10))
	}
	return s.withConn(ctx, func(conn *redisConn) error {
		if err := conn.send("SET", args...); err != nil {
			return err
		}
		_, err := conn.read()
		return err
	})
}

// DeletePrefix walks the keyspace with SCAN and deletes matching keys batch by batch.
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	removed := 0
	err := s.withConn(ctx, func(conn *redisConn) error {
		cursor := "0"
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := conn.send("SCAN", cursor, "MATCH", escapeGlob(prefix)+"*", "COUNT", strconv.Itoa(scanBatch)); err != nil {
				return err
			}
			reply, err := conn.read()
			if err != nil {
				return err
			}
			next, keys, err := parseScanReply(reply)
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				if err := conn.send("DEL", keys...); err != nil {
					return err
				}
				n, err := conn.read()
				if err != nil {
					return err
				}
				if count, ok := n.(int64); ok {
					removed += int(count)
				}
			}
			if next == "0" {
				return nil
			}
			cursor = next
		}
	})
	return removed, err
}

func parseScanReply(reply any) (string, []string, error) {
	arr, ok := reply.([]any)
	if !ok || len(arr) != 2 {
		return "", nil, fmt.Errorf("unexpected scan reply %T", reply)
	}
	cursor, ok := arr[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("unexpected scan cursor %T", arr[0])
	}
	raw, _ := arr[1].([]any)
	keys := make([]string, 0, len(raw))
	for _, item := range raw {
		if key, ok := item.(string); ok {
			keys = append(keys, key)
		}
	}
	return cursor, keys, nil
}

func escapeGlob(v string) string {
	var b strings.Builder
	for _, r := range v {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *RedisStore) withConn(ctx context.Context, fn func(*redisConn) error) error {
	conn, err := newRedisConn(ctx, s.addr, s.timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.initialize(s.password, s.db); err != nil {
		return err
	}
	return fn(conn)
}

type redisConn struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
}

func newRedisConn(ctx context.Context, addr string, timeout time.Duration) (*redisConn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	c, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial redis: %w", err)
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.SetDeadline(deadline)
	return &redisConn{
		conn:   c,
		reader: bufio.NewReader(c),
		writer: bufio.NewWriter(c),
	}, nil
}

func (c *redisConn) initialize(password string, db int) error {
	if password != "" {
		if err := c.send("AUTH", password); err != nil {
			return err
		}
		if _, err := c.read(); err != nil {
			return fmt.Errorf("redis auth: %w", err)
		}
	}
	if db != 0 {
		if err := c.send("SELECT", strconv.Itoa(db)); err != nil {
			return err
		}
		if _, err := c.read(); err != nil {
			return fmt.Errorf("redis select: %w", err)
		}
	}
	return nil
}

func (c *redisConn) send(cmd string, args ...string) error {
	if _, err := fmt.Fprintf(c.writer, "*%d\r\n", len(args)+1); err != nil {
		return err
	}
	if err := writeBulk(c.writer, strings.ToUpper(cmd)); err != nil {
		return err
	}
	for _, arg := range args {
		if err := writeBulk(c.writer, arg); err != nil {
			return err
		}
	}
	return c.writer.Flush()
}

func writeBulk(w *bufio.Writer, value string) error {
	_, err := fmt.Fprintf(w, "$%d\r\n%s\r\n", len(value), value)
	return err
}

func (c *redisConn) read() (any, error) {
	prefix, err := c.reader.ReadByte()
	if err != nil {
		return nil, err
	}
	switch prefix {
	case '+':
		return readLine(c.reader)
	case '-':
		line, err := readLine(c.reader)
		if err != nil {
			return nil, err
		}
		return nil, errors.New(line)
	case ':':
		line, err := readLine(c.reader)
		if err != nil {
			return nil, err
		}
		return strconv.ParseInt(line, 10, 64)
	case '$':
		line, err := readLine(c.reader)
		if err != nil {
			return nil, err
		}
		length, err := strconv.Atoi(line)
		if err != nil {
			return nil, err
		}
		if length == -1 {
			return nil, nil
		}
		buf := make([]byte, length+2)
		if _, err := io.ReadFull(c.reader, buf); err != nil {
			return nil, err
		}
		return string(buf[:length]), nil
	case '*':
		line, err := readLine(c.reader)
		if err != nil {
			return nil, err
		}
		count, err := strconv.Atoi(line)
		if err != nil {
			return nil, err
		}
		if count == -1 {
			return nil, nil
		}
		items := make([]any, 0, count)
		for i := 0; i < count; i++ {
			item, err := c.read()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unexpected redis prefix %q", prefix)
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

func (c *redisConn) Close() error {
	return c.conn.Close()
}
