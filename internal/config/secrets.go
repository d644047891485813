package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment variables holding the credentials.
const (
	EnvPracticumToken = "PRACTICUM_TOKEN"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
)

// ErrMissingSecret is returned when a required credential is absent. It is
// the only fatal startup condition.
var ErrMissingSecret = errors.New("missing required secret")

// Secrets are the credentials the bot needs to run. Build once with
// LoadSecrets; never log the token fields.
type Secrets struct {
	PracticumToken string `validate:"required"`
	TelegramToken  string `validate:"required"`
	TelegramChatID int64  `validate:"required_without=TelegramChannel"`

	// TelegramChannel is a public channel username ("@name"), used when
	// TELEGRAM_CHAT_ID is not numeric.
	TelegramChannel string `validate:"omitempty,startswith=@,min=2"`
}

// ChatLabel identifies the destination chat in logs.
func (s Secrets) ChatLabel() string {
	if s.TelegramChatID != 0 {
		return strconv.FormatInt(s.TelegramChatID, 10)
	}
	return s.TelegramChannel
}

// SecretsError lists every missing or invalid environment variable.
type SecretsError struct {
	Vars []string
}

func (e *SecretsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingSecret.Error(), strings.Join(e.Vars, ", "))
}

func (e *SecretsError) Unwrap() error { return ErrMissingSecret }

// Only narrows the error to the given variables. It returns nil when none of
// them is missing, for tools that need a subset of the credentials.
func (e *SecretsError) Only(names ...string) error {
	var keep []string
	for _, v := range e.Vars {
		for _, name := range names {
			if v == name || strings.HasPrefix(v, name+" ") {
				keep = append(keep, v)
				break
			}
		}
	}
	if len(keep) == 0 {
		return nil
	}
	return &SecretsError{Vars: keep}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var envNames = map[string]string{
	"PracticumToken": EnvPracticumToken,
	"TelegramToken":  EnvTelegramToken,
	"TelegramChatID":  EnvTelegramChatID,
	"TelegramChannel": EnvTelegramChatID,
}

// LoadSecrets reads the credentials from the environment. When envFile is
// non-empty and exists it is loaded first; variables already set in the
// process environment win.
func LoadSecrets(envFile string) (Secrets, error) {
	if envFile = strings.TrimSpace(envFile); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Secrets{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return SecretsFromLookup(os.LookupEnv)
}

// SecretsFromLookup builds Secrets from an arbitrary variable source.
func SecretsFromLookup(lookup func(string) (string, bool)) (Secrets, error) {
	get := func(name string) string {
		v, _ := lookup(name)
		return strings.TrimSpace(v)
	}

	s := Secrets{
		PracticumToken: get(EnvPracticumToken),
		TelegramToken:  get(EnvTelegramToken),
	}
	var bad []string
	if raw := get(EnvTelegramChatID); raw != "" {
		if strings.HasPrefix(raw, "@") {
			s.TelegramChannel = raw
		} else if id, err := strconv.ParseInt(raw, 10, 64); err != nil {
			bad = append(bad, EnvTelegramChatID+" (not an integer or @channel)")
		} else {
			s.TelegramChatID = id
		}
	}

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Secrets{}, err
		}
		for _, fe := range verrs {
			if name, ok := envNames[fe.StructField()]; ok && !containsPrefix(bad, name) {
				bad = append(bad, name)
			}
		}
	}
	if len(bad) > 0 {
		// The partial value is still returned so callers can use Only.
		return s, &SecretsError{Vars: bad}
	}
	return s, nil
}

func containsPrefix(list []string, prefix string) bool {
	for _, s := range list {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
