package mailtm

import "time"

type Domain struct {
	ID       string `json:"id"`
	Domain   string `json:"domain"`
	IsActive bool   `json:"isActive"`
}

type Account struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

type Address struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type Message struct {
	ID             string       `json:"id"`
	From           Address      `json:"from"`
	Subject        string       `json:"subject"`
	Intro          string       `json:"intro"`
	Text           string       `json:"text"`
	HasAttachments bool         `json:"hasAttachments"`
	Attachments    []Attachment `json:"attachments"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// The provider wraps collection responses in a hydra envelope.
type domainCollection struct {
	Members []Domain `json:"hydra:member"`
}

type messageCollection struct {
	Members []Message `json:"hydra:member"`
}

type tokenResponse struct {
	Token string `json:"token"`
}
