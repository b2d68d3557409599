package domain

import "errors"

// Credentials are the HKU library login and the identities used on outgoing mail.
type Credentials struct {
	Login          string
	Password       string
	SenderName     string
	SenderEmail    string
	RecipientEmail string
}

// Validate requires the library login.
func (c Credentials) Validate() error {
	if c.Login == "" {
		return errors.New("HKU_LOGIN is required")
	}
	if c.Password == "" {
		return errors.New("HKU_PASSWORD is required")
	}
	return nil
}

// ValidateMail requires the sender and recipient used when emailing results.
func (c Credentials) ValidateMail() error {
	if c.SenderName == "" {
		return errors.New("SENDER is required to email results")
	}
	if c.SenderEmail == "" {
		return errors.New("FROM_EMAIL is required to email results")
	}
	if c.RecipientEmail == "" {
		return errors.New("TO_EMAIL is required to email results")
	}
	return nil
}

// EmailForm is what the portal's email tool is filled in with.
type EmailForm struct {
	SenderName  string
	SenderEmail string
	Recipient   string
	Subject     string
}

// EmailForm fills the portal email form from the mail identities.
func (c Credentials) EmailForm(subject string) EmailForm {
	return EmailForm{
		SenderName:  c.SenderName,
		SenderEmail: c.SenderEmail,
		Recipient:   c.RecipientEmail,
		Subject:     subject,
	}
}
