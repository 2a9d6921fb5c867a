package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendMentionNotice(toEmail, authorName, filePath, excerpt, link string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	frontendURL string
}

func NewEmailService(host string, port int, username, password, senderEmail, senderName, frontendURL string) IEmailService {
	return &emailService{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: senderEmail,
		senderName:  senderName,
		frontendURL: frontendURL,
	}
}

func (s *emailService) SendMentionNotice(toEmail, authorName, filePath, excerpt, link string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.senderEmail, s.senderName))
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("%s mentioned you in a code comment", authorName))

	if link == "" {
		link = s.frontendURL
	}

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<p><strong>%s</strong> mentioned you on <code>%s</code>:</p>
			<blockquote style="border-left: 3px solid #4CAF50; padding-left: 12px; color: #555;">%s</blockquote>
			<p><a href="%s">Open the thread</a></p>
		</div>
	`, authorName, filePath, excerpt, link)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send mention notice to %s: %v\n", toEmail, err)
		return err
	}
	return nil
}
