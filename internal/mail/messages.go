package mail

import "fmt"

const signature = "Best regards,\nNomcebo Bank Team"

// SendWelcome sends the registration welcome mail with the email
// verification link.
func SendWelcome(sender MailSender, toEmail, firstName, verifyURL string) error {
	body := fmt.Sprintf(
		"Dear %s,\n\nThank you for registering with Nomcebo Bank. Please verify your "+
			"email by clicking the link below:\n%s\n\nIf you did not register, "+
			"please ignore this email.\n\n%s",
		firstName, verifyURL, signature,
	)
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: "Welcome to Nomcebo Bank! Please verify your email",
		Body:    body,
	})
}

// SendPasswordReset sends the reset link for a password reset request.
func SendPasswordReset(sender MailSender, toEmail, firstName, resetURL string) error {
	body := fmt.Sprintf(
		"Dear %s,\n\nWe received a request to reset your password. "+
			"Please reset your password by clicking the link below:\n%s\n\n"+
			"If you did not request a password reset, please ignore this email.\n\n%s",
		firstName, resetURL, signature,
	)
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: "Nomcebo Bank Password Reset",
		Body:    body,
	})
}
