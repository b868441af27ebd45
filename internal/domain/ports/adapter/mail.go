package adapter

import "context"

type MailSender interface {
	SendPasswordResetCode(ctx context.Context, email, code string) error
}
