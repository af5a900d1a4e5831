package provision

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.io/infrasutra/provmail/internal/mailtm"
	"github.io/infrasutra/provmail/internal/store"
)

const (
	localPartLength = 10
	passwordLength  = 12

	localPartAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	passwordAlphabet  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// AccountAPI is the slice of the provider client the provisioner needs.
type AccountAPI interface {
	Domains(ctx context.Context) ([]mailtm.Domain, error)
	CreateAccount(ctx context.Context, address, password string) (mailtm.Account, error)
	Token(ctx context.Context, address, password string) (string, error)
}

// Error reports exhausted provisioning attempts, wrapping the last cause.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provision mailbox: %d attempts exhausted: %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Provisioner struct {
	api      AccountAPI
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

func New(api AccountAPI, logger *slog.Logger, attempts int, backoff time.Duration) *Provisioner {
	if attempts <= 0 {
		attempts = 3
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Provisioner{api: api, logger: logger, attempts: attempts, backoff: backoff}
}

// Provision creates one ephemeral mailbox and credential set for a user.
// Token issuance is expected to fail transiently right after account creation
// while the provider indexes the new account, hence the fixed-backoff retry.
func (p *Provisioner) Provision(ctx context.Context, userID int64) (store.Session, error) {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		session, err := p.attempt(ctx, userID)
		if err == nil {
			return session, nil
		}
		lastErr = err
		p.logger.Warn("provision attempt failed", "user", userID, "attempt", attempt, "error", err)

		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return store.Session{}, &Error{Attempts: attempt, Err: ctx.Err()}
		case <-time.After(p.backoff):
		}
	}
	return store.Session{}, &Error{Attempts: p.attempts, Err: lastErr}
}

func (p *Provisioner) attempt(ctx context.Context, userID int64) (store.Session, error) {
	domains, err := p.api.Domains(ctx)
	if err != nil {
		return store.Session{}, err
	}
	if len(domains) == 0 {
		return store.Session{}, errors.New("provider reported no domains")
	}
	index, err := randomIndex(len(domains))
	if err != nil {
		return store.Session{}, err
	}

	localPart, err := randomString(localPartLength, localPartAlphabet)
	if err != nil {
		return store.Session{}, err
	}
	password, err := randomString(passwordLength, passwordAlphabet)
	if err != nil {
		return store.Session{}, err
	}
	address := localPart + "@" + domains[index].Domain

	if _, err := p.api.CreateAccount(ctx, address, password); err != nil {
		return store.Session{}, err
	}
	token, err := p.api.Token(ctx, address, password)
	if err != nil {
		return store.Session{}, err
	}

	return store.Session{
		UserID:    userID,
		Address:   address,
		Password:  password,
		Token:     token,
		CreatedAt: time.Now(),
	}, nil
}

func randomIndex(n int) (int, error) {
	value, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("pick domain: %w", err)
	}
	return int(value.Int64()), nil
}

func randomString(length int, alphabet string) (string, error) {
	out := make([]byte, length)
	for i := range out {
		value, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("generate credential: %w", err)
		}
		out[i] = alphabet[value.Int64()]
	}
	return string(out), nil
}
