package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// The hash field signs the remaining launch parameters; the signing key is the
// bot token keyed with the fixed "WebAppData" label, per the Telegram WebApp
// contract. This check is the only trust boundary between the mini app client
// and the backend.

var (
	ErrEmpty            = errors.New("init data is empty")
	ErrMissingHash      = errors.New("init data hash is missing")
	ErrInvalidSignature = errors.New("init data signature mismatch")
	ErrExpired          = errors.New("init data is stale")
	ErrMalformedUser    = errors.New("init data user field is malformed")
)

const webAppDataLabel = "WebAppData"

type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
}

// Validate proves the authenticity of a raw launch-data string and returns
// the parsed fields. The supplied hash is compared in constant time.
func Validate(initData, botToken string) (url.Values, error) {
	trimmed := strings.TrimSpace(initData)
	if trimmed == "" {
		return nil, ErrEmpty
	}

	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse init data: %w", err)
	}

	suppliedHash := values.Get("hash")
	if suppliedHash == "" {
		return nil, ErrMissingHash
	}
	values.Del("hash")

	checkString := buildCheckString(values)

	secret := hmac.New(sha256.New, []byte(webAppDataLabel))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(suppliedHash)) {
		return nil, ErrInvalidSignature
	}

	return values, nil
}

// ValidateWithAge additionally rejects launch data whose auth_date is older
// than maxAge. A zero maxAge disables the staleness check.
func ValidateWithAge(initData, botToken string, maxAge time.Duration, now time.Time) (url.Values, error) {
	values, err := Validate(initData, botToken)
	if err != nil {
		return nil, err
	}
	if maxAge <= 0 {
		return values, nil
	}

	rawAuthDate := values.Get("auth_date")
	authDate, parseErr := strconv.ParseInt(rawAuthDate, 10, 64)
	if parseErr != nil || authDate <= 0 {
		return nil, ErrExpired
	}
	if now.UTC().Sub(time.Unix(authDate, 0)) > maxAge {
		return nil, ErrExpired
	}

	return values, nil
}

func ParseUser(values url.Values) (User, error) {
	rawUser := values.Get("user")
	if strings.TrimSpace(rawUser) == "" {
		return User{}, ErrMalformedUser
	}

	var user User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrMalformedUser, err)
	}
	if user.ID <= 0 {
		return User{}, ErrMalformedUser
	}

	return user, nil
}

func buildCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+values.Get(key))
	}

	return strings.Join(lines, "\n")
}
