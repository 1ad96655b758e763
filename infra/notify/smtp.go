// Package notify delivers charging alerts as text messages through an
// email-to-SMS carrier gateway.
package notify

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	corenotify "github.com/smart-ev/chargectl/core/notify"
	"github.com/smart-ev/chargectl/infra/logger"
)

// Config defines the gateway settings. The whole section is optional:
// leaving every field empty disables notifications.
type Config struct {
	SMTPServer     string `json:"smtp_server"`
	SMTPPort       int    `json:"smtp_port"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	PhoneNumber    string `json:"phone_number"`
	CarrierGateway string `json:"carrier_gateway"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Empty reports whether the section was left unset.
func (c Config) Empty() bool {
	return c.SMTPServer == "" && c.Email == "" && c.Password == "" &&
		c.PhoneNumber == "" && c.CarrierGateway == ""
}

// SetDefaults fills the submission port and the delivery timeout. A fully
// empty section stays empty.
func (c *Config) SetDefaults() {
	if c.Empty() {
		return
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 10
	}
}

// Validate rejects a partially filled section.
func (c Config) Validate() error {
	if c.Empty() {
		return nil
	}
	var missing []string
	if c.SMTPServer == "" {
		missing = append(missing, "smtp_server")
	}
	if c.Email == "" {
		missing = append(missing, "email")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if c.PhoneNumber == "" {
		missing = append(missing, "phone_number")
	}
	if c.CarrierGateway == "" {
		missing = append(missing, "carrier_gateway")
	}
	if len(missing) > 0 {
		return fmt.Errorf("notification config incomplete, missing %s", strings.Join(missing, ", "))
	}
	return nil
}

const subject = "EV Charging Alert"

// SMSNotifier sends each alert on its own goroutine with a hard deadline so
// the control loop never waits on the relay. Delivery failures are logged
// and swallowed.
type SMSNotifier struct {
	addr    string
	host    string
	from    string
	to      string
	auth    smtp.Auth
	timeout time.Duration
	log     logger.Logger
}

var _ corenotify.Notifier = (*SMSNotifier)(nil)

// NewSMSNotifier builds a notifier from cfg. The recipient address is the
// phone number at the carrier gateway domain.
func NewSMSNotifier(cfg Config) *SMSNotifier {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMSNotifier{
		addr:    fmt.Sprintf("%s:%d", cfg.SMTPServer, cfg.SMTPPort),
		host:    cfg.SMTPServer,
		from:    cfg.Email,
		to:      fmt.Sprintf("%s@%s", cfg.PhoneNumber, cfg.CarrierGateway),
		auth:    smtp.PlainAuth("", cfg.Email, cfg.Password, cfg.SMTPServer),
		timeout: timeout,
		log:     logger.New("notifier"),
	}
}

// Notify sends the message without blocking the caller.
func (n *SMSNotifier) Notify(message string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				n.log.Errorf("notification panic: %v", r)
			}
		}()
		if err := n.send(message); err != nil {
			n.log.Errorf("notification failed: %v", err)
			return
		}
		n.log.Infof("SMS sent to %s", n.to)
	}()
}

// send speaks SMTP by hand instead of using smtp.SendMail so the connection
// carries a deadline; the relay being slow must not leak goroutines.
func (n *SMSNotifier) send(message string) error {
	conn, err := net.DialTimeout("tcp", n.addr, n.timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", n.addr, err)
	}
	if err := conn.SetDeadline(time.Now().Add(n.timeout)); err != nil {
		_ = conn.Close()
		return err
	}
	cli, err := smtp.NewClient(conn, n.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = cli.Close() }()

	if ok, _ := cli.Extension("STARTTLS"); ok {
		if err := cli.StartTLS(&tls.Config{ServerName: n.host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if ok, _ := cli.Extension("AUTH"); ok {
		if err := cli.Auth(n.auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := cli.Mail(n.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := cli.Rcpt(n.to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := cli.Data()
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", n.from, n.to, subject, message)
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return cli.Quit()
}
