package models

import "time"

// AccountType is the closed set of supported outbound transports. The provider
// factory switches exhaustively over these values; adding a transport means
// adding a constant here and a case there.
type AccountType string

const (
	TypeESP            AccountType = "esp"
	TypeGmailOAuth     AccountType = "gmail_oauth"
	TypeMicrosoftOAuth AccountType = "microsoft_oauth"
	TypeSMTP           AccountType = "smtp"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case TypeESP, TypeGmailOAuth, TypeMicrosoftOAuth, TypeSMTP:
		return true
	}
	return false
}

// Account status values.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
	StatusPending  = "pending"
)

// EmailAccount is one connected sending identity owned by a company.
// At most one active account per company should carry IsDefault; the promote
// handler enforces this transactionally, and the factory tie-breaks on
// UpdatedAt when legacy rows disagree.
type EmailAccount struct {
	ID          string      `gorm:"primaryKey" json:"id"` // UUID
	CompanyID   string      `gorm:"index;not null" json:"company_id"`
	Type        AccountType `gorm:"size:32;not null" json:"type"`
	FromAddress string      `gorm:"size:255;not null" json:"from_address"`
	FromName    string      `gorm:"size:255" json:"from_name"`
	IsDefault   bool        `gorm:"default:false" json:"is_default"`
	Status      string      `gorm:"size:16;default:active" json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// EmailSecret is the encrypted credential blob for one account. The decrypted
// form is a JSON object whose shape depends on the account type: OAuth
// accounts hold {accessToken, refreshToken, expiresAt}, SMTP accounts hold
// {host, port, username, password, useTls}, ESP accounts hold {apiKey}.
// Created and deleted together with its account.
type EmailSecret struct {
	AccountID  string    `gorm:"primaryKey" json:"account_id"`
	Ciphertext string    `gorm:"not null" json:"-"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Config stores application configuration like the generated API key.
type Config struct {
	Key       string `gorm:"primaryKey"` // Config key name
	Value     string // Config value
	CreatedAt time.Time
	UpdatedAt time.Time
}
