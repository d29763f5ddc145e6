package mailing

import (
	"io/fs"
	"strings"
	"time"

	"html/template"

	"github.com/go-mail/mail"
	"github.com/jaytaylor/html2text"
	"github.com/sepetli/kimlik/config"
	"go.uber.org/zap"
)

// Mailer sends the transactional mails, in noop mode (smtp disabled)
// it only logs, which keeps local setups working without a relay
type Mailer struct {
	noop          bool
	client        *mail.Dialer
	log           *zap.Logger
	cfg           *config.Configuration
	emailTemplate *template.Template
}

func (m *Mailer) baseModel(title string, message string) map[string]interface{} {
	b := make(map[string]interface{})
	b["service_name"] = m.cfg.Behaviour.Name
	b["date"] = time.Now().Format("2006-01-02 15:04")
	b["site"] = m.cfg.Behaviour.Site
	b["title"] = title
	b["message"] = message
	return b
}

// SendVerificationMail mails the six digit signup code, the code is
// only valid for 24 hours
func (m *Mailer) SendVerificationMail(email string, name string, code string) error {
	if m.noop {
		m.log.Info("skipping email `Verification` because noop is configured",
			zap.String("code", code))
		return nil
	}
	base := m.baseModel(
		"E-posta Doğrulama",
		"Merhaba "+name+", kaydınızı tamamlamak için aşağıdaki doğrulama kodunu kullanın. Kod 24 saat geçerlidir.",
	)
	base["token_text"] = "Doğrulama kodunuz"
	base["token"] = code
	base["subject"] = "E-posta adresinizi doğrulayın"
	return m.send(email, "E-posta adresinizi doğrulayın", base)
}

// SendPasswordResetMail mails the password reset token
func (m *Mailer) SendPasswordResetMail(email string, name string, token string) error {
	if m.noop {
		m.log.Info("skipping email `PasswordReset` because noop is configured",
			zap.String("token", token))
		return nil
	}
	base := m.baseModel(
		"Şifre Sıfırlama",
		"Merhaba "+name+", şifrenizi sıfırlamak için aşağıdaki bağlantıyı kullanın. Bu isteği siz yapmadıysanız bu e-postayı yok sayabilirsiniz.",
	)
	base["link_text"] = "Şifremi sıfırla"
	base["link"] = m.cfg.Behaviour.ServiceDomain + "/password-reset?token=" + token
	base["token_text"] = "Sıfırlama kodunuz"
	base["token"] = token
	base["subject"] = "Şifre sıfırlama isteği"
	return m.send(email, "Şifre sıfırlama isteği", base)
}

func (m *Mailer) SendTestEmail(email string) error {
	base := m.baseModel("This is a test", "hey your email confirugation seems to be fine.")
	base["subject"] = "Your test email is here!"
	base["token"] = "test"
	base["token_text"] = "test"
	return m.send(email, "Your test email is here!", base)
}

func (m *Mailer) send(email string, subject string, viewModel map[string]interface{}) error {
	buffer := new(strings.Builder)
	err := m.emailTemplate.Execute(buffer, viewModel)
	if err != nil {
		return err
	}
	html := buffer.String()
	text, err := html2text.FromString(html, html2text.Options{PrettyTables: true})
	if err != nil {
		return err
	}
	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.SMTP.Address, m.cfg.SMTP.DisplayName)
	msg.SetAddressHeader("To", email, "")
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html)
	return m.client.DialAndSend(msg)
}

func NewMailer(
	log *zap.Logger,
	cfg *config.Configuration,
	files fs.FS,
) (*Mailer, error) {

	t, err := template.ParseFS(files, "template.html")
	if err != nil {
		return nil, err
	}
	s := &Mailer{
		noop:          !cfg.SMTP.Enabled,
		log:           log,
		emailTemplate: t,
		cfg:           cfg,
	}
	if !s.noop {
		s.client = mail.NewDialer(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.Username,
			cfg.SMTP.Password,
		)
	}
	return s, nil
}

func NewNoOpMailer(log *zap.Logger) *Mailer {
	s := &Mailer{
		noop: true,
		log:  log,
	}
	return s
}
