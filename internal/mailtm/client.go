package mailtm

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// UpstreamError reports a failed or malformed response from the mailbox
// provider. StatusCode is zero when the request never produced a response.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("mailtm: %s: upstream status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("mailtm: %s: %s", e.Op, e.Body)
}

// Client is a stateless wrapper around the provider REST API. It performs no
// retries; callers own retry and failure-isolation policy.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string) *Client {
	return &Client{http: resty.New().SetBaseURL(baseURL)}
}

func (c *Client) Domains(ctx context.Context) ([]Domain, error) {
	var collection domainCollection
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&collection).
		Get("/domains")
	if err := upstreamError("list domains", resp, err); err != nil {
		return nil, err
	}
	return collection.Members, nil
}

func (c *Client) CreateAccount(ctx context.Context, address, password string) (Account, error) {
	var account Account
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"address": address, "password": password}).
		SetResult(&account).
		Post("/accounts")
	if err := upstreamError("create account", resp, err); err != nil {
		return Account{}, err
	}
	return account, nil
}

func (c *Client) Token(ctx context.Context, address, password string) (string, error) {
	var token tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"address": address, "password": password}).
		SetResult(&token).
		Post("/token")
	if err := upstreamError("issue token", resp, err); err != nil {
		return "", err
	}
	if token.Token == "" {
		return "", &UpstreamError{Op: "issue token", StatusCode: resp.StatusCode(), Body: "response carries no token"}
	}
	return token.Token, nil
}

func (c *Client) Messages(ctx context.Context, token string) ([]Message, error) {
	var collection messageCollection
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&collection).
		Get("/messages")
	if err := upstreamError("list messages", resp, err); err != nil {
		return nil, err
	}
	return collection.Members, nil
}

func (c *Client) Message(ctx context.Context, token, id string) (Message, error) {
	var message Message
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&message).
		SetPathParam("id", id).
		Get("/messages/{id}")
	if err := upstreamError("fetch message", resp, err); err != nil {
		return Message{}, err
	}
	return message, nil
}

func (c *Client) AttachmentBytes(ctx context.Context, token, mailID, attachmentID string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("id", mailID).
		SetPathParam("attachmentId", attachmentID).
		Get("/messages/{id}/attachments/{attachmentId}")
	if err := upstreamError("fetch attachment", resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func upstreamError(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &UpstreamError{Op: op, Body: err.Error()}
	}
	if resp.IsError() {
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}
