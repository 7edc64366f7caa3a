package delivery

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/textproto"
	"os"
	"strings"

	"github.com/wneessen/go-mail"
	"github.com/wneessen/go-mail/smtp"
)

// Class is the retry classification of a delivery error.
type Class string

const (
	// ClassTransient errors are retried with backoff.
	ClassTransient Class = "transient"
	// ClassPermanent errors give up on the affected destination only.
	ClassPermanent Class = "permanent"
	// ClassAuth errors reject the credentials; no destination can succeed.
	ClassAuth Class = "auth"
	// ClassCancelled stops delivery without further attempts.
	ClassCancelled Class = "cancelled"
)

var errInvalidAddress = errors.New("invalid address")

// setupErrors are client/server mismatches that no amount of retrying fixes.
var setupErrors = []error{
	mail.ErrPlainAuthNotSupported,
	mail.ErrLoginAuthNotSupported,
	mail.ErrNoSupportedAuthDiscovered,
	mail.ErrSMTPAuthMethodIsNil,
	mail.ErrInvalidTLSConfig,
	mail.ErrInvalidPort,
	mail.ErrNoHostname,
	smtp.ErrUnencrypted,
	smtp.ErrWrongHostname,
}

// Classify decides how a send or dial error affects the retry loop.
func Classify(err error) Class {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return ClassCancelled
	}

	var proto *textproto.Error
	if errors.As(err, &proto) {
		switch {
		case proto.Code == 530 || proto.Code == 534 || proto.Code == 535 || proto.Code == 538:
			return ClassAuth
		case proto.Code >= 400 && proto.Code < 500:
			return ClassTransient
		case proto.Code >= 500:
			return ClassPermanent
		}
	}

	for _, target := range setupErrors {
		if errors.Is(err, target) {
			return ClassPermanent
		}
	}
	if strings.Contains(err.Error(), "does not support STARTTLS") {
		return ClassPermanent
	}
	var certErr *tls.CertificateVerificationError
	var authorityErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &authorityErr) || errors.As(err, &hostnameErr) {
		return ClassPermanent
	}

	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		if sendErr.IsTemp() {
			return ClassTransient
		}
		return ClassPermanent
	}

	if errors.Is(err, errInvalidAddress) || errors.Is(err, os.ErrNotExist) {
		return ClassPermanent
	}

	// Timeouts, dropped connections and anything unrecognised are retried.
	return ClassTransient
}
