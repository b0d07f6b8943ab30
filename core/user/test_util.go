package user

import (
	"github.com/trezcool/shule/core"
)

// NewServiceMock returns a Service sending its mails synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	svc := NewService(repo, mailSvc, conf)
	svc.sync = true
	return svc
}
