package utils

import (
	"time"

	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
)

// CaptchaVerifier checks a challenge id against the visitor's answer.
type CaptchaVerifier interface {
	Verify(id, answer string) bool
}

// CaptchaIssuer hands out new challenges.
type CaptchaIssuer interface {
	Generate() (id, image string, err error)
}

// DigitCaptcha issues 5-digit image challenges and verifies answers exactly once.
type DigitCaptcha struct {
	store  base64Captcha.Store
	driver base64Captcha.Driver
}

// NewDigitCaptcha keeps answers in Redis when rc is set, otherwise in process memory.
func NewDigitCaptcha(rc *redis.Client, ttl time.Duration) *DigitCaptcha {
	var store base64Captcha.Store
	if rc != nil {
		store = NewRedisCaptchaStore(rc, ttl)
	} else {
		store = base64Captcha.NewMemoryStore(base64Captcha.GCLimitNumber, ttl)
	}
	return &DigitCaptcha{
		store:  store,
		driver: base64Captcha.NewDriverDigit(40, 120, 5, 0.7, 80),
	}
}

// Generate creates a captcha and returns its id and data URI image.
func (d *DigitCaptcha) Generate() (string, string, error) {
	id, b64, _, err := base64Captcha.NewCaptcha(d.driver, d.store).Generate()
	return id, b64, err
}

// Verify consumes the stored answer for id.
func (d *DigitCaptcha) Verify(id, answer string) bool {
	if id == "" || answer == "" {
		return false
	}
	return d.store.Verify(id, answer, true)
}

// NoCaptcha accepts every answer; used when captcha is disabled.
type NoCaptcha struct{}

func (NoCaptcha) Verify(string, string) bool { return true }
