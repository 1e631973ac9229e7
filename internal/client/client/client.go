package client

import (
	"context"
)

// Result is the server's verdict on a join, login, refresh or logout.
type Result struct {
	Code    string
	Status  int
	Message string
}

func (r Result) OK() bool { return r.Code == "ok" }

// Identity is what the server knows about the logged-in member.
type Identity struct {
	MemberID string
	Email    string
}

type Client interface {
	Close() error
	Join(ctx context.Context, email, password string) (Result, error)
	Login(ctx context.Context, email, password string) (Result, error)
	Refresh(ctx context.Context) (Result, error)
	Logout(ctx context.Context) (Result, error)
	Whoami(ctx context.Context) (*Identity, error)
	Ping(ctx context.Context) error
	LoggedIn() bool
}
