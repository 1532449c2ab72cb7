package utils

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
)

const (
	captchaKeyPrefix = "captcha:"
	captchaOpTimeout = 2 * time.Second
)

// redisCaptchaStore keeps captcha answers in Redis so any instance can verify them.
type redisCaptchaStore struct {
	rc  *redis.Client
	ttl time.Duration
}

// NewRedisCaptchaStore stores answers under "captcha:<id>" for ttl (10 minutes when unset).
func NewRedisCaptchaStore(rc *redis.Client, ttl time.Duration) base64Captcha.Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisCaptchaStore{rc: rc, ttl: ttl}
}

func (s *redisCaptchaStore) Set(id string, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), captchaOpTimeout)
	defer cancel()
	return s.rc.Set(ctx, captchaKeyPrefix+id, value, s.ttl).Err()
}

// Get returns the stored answer; with clear the answer is removed atomically via GETDEL.
func (s *redisCaptchaStore) Get(id string, clear bool) string {
	ctx, cancel := context.WithTimeout(context.Background(), captchaOpTimeout)
	defer cancel()

	var cmd *redis.StringCmd
	if clear {
		cmd = s.rc.GetDel(ctx, captchaKeyPrefix+id)
	} else {
		cmd = s.rc.Get(ctx, captchaKeyPrefix+id)
	}
	v, err := cmd.Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			Sugar.Warnf("captcha lookup failed id=%s err=%v", id, err)
		}
		return ""
	}
	return v
}

func (s *redisCaptchaStore) Verify(id, answer string, clear bool) bool {
	v := s.Get(id, clear)
	return v != "" && subtle.ConstantTimeCompare([]byte(v), []byte(answer)) == 1
}
