// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors turns query client failures into user-friendly hints.
package httperrors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"

	"duners/cli/internal/dune"
	kinds "duners/cli/internal/errors"
	"duners/cli/internal/logging"

	"github.com/pterm/pterm"
)

// Present writes an explanation of err to w and returns err unchanged, so a
// command can `return httperrors.Present(...)`. action reads like
// "fetching query 42".
func Present(w io.Writer, err error, action string) error {
	if err == nil {
		return nil
	}
	pterm.Fprintln(w, headline(err, action))
	for _, hint := range hints(err) {
		pterm.Fprintln(w, "  • "+hint)
	}
	return err
}

// headline is the one-line summary of err.
func headline(err error, action string) string {
	var se *dune.StatusError
	var nr *dune.NotReadyError
	switch {
	case errors.As(err, &nr):
		return fmt.Sprintf("⏳ Query %s is not ready (%s) while %s", nr.QueryID, nr.State.Short(), action)
	case errors.As(err, &se):
		return fmt.Sprintf("❌ Dune API returned %d while %s: %s", se.Code, action, se.Message)
	case isTimeoutError(err):
		return fmt.Sprintf("⏱️  Connection timeout while %s", action)
	case isDNSError(err):
		return fmt.Sprintf("🌐 Cannot resolve server address while %s", action)
	case isConnectionRefusedError(err):
		return fmt.Sprintf("🚫 Connection refused while %s", action)
	case isSSLError(err):
		return fmt.Sprintf("🔒 Secure connection failed while %s", action)
	default:
		return "❌ " + logging.PresentError(action, err)
	}
}

// hints lists follow-up suggestions for err.
func hints(err error) []string {
	var se *dune.StatusError
	var nr *dune.NotReadyError
	switch {
	case errors.As(err, &nr):
		if nr.State.IsTerminal() {
			return []string{"The execution ended without a result; run 'duners execute " + nr.QueryID + "' to start a new one"}
		}
		return []string{"The execution is still running; try again in a few moments"}
	case errors.As(err, &se):
		switch {
		case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
			return []string{"Check that DUNE_API_KEY is valid", "Run 'duners whoami' to see which key is in use"}
		case se.Code == http.StatusNotFound:
			return []string{"Check the query id and that the query is visible to your account"}
		case se.Code == http.StatusTooManyRequests:
			return []string{"You are being rate limited; wait before retrying"}
		case se.Code >= 500:
			return []string{"The Dune API had an internal error; this is not a problem with your setup", "Please try again in a few minutes"}
		}
		return nil
	case isTimeoutError(err):
		return []string{"Slow internet connection", "The API is under heavy load", "A firewall is blocking the connection"}
	case isDNSError(err):
		return []string{"Your internet connection is working", "DNS settings are correct"}
	case isConnectionRefusedError(err):
		return []string{"Check DUNE_API_BASE_URL or base_url in your config", "A proxy or firewall may be blocking the connection"}
	case isSSLError(err):
		return []string{"Check your system date and time", "Verify network proxy settings"}
	}
	switch kinds.KindOf(err) {
	case kinds.MissingCredential:
		return []string{"export DUNE_API_KEY=<key>", "or add DUNE_API_KEY to a .env file", "or run 'duners login'"}
	case kinds.StorageError:
		return []string{"Check permissions on the cache directory ('duners cache path')"}
	case kinds.DecodeError:
		return []string{"The API answered with an unexpected body; check DUNE_API_BASE_URL"}
	}
	return nil
}

// isTimeoutError checks if the error is a timeout error.
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// isDNSError checks if the error is a DNS resolution error.
func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// isConnectionRefusedError checks if the error is a connection refused error.
func isConnectionRefusedError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// isSSLError checks if the error is an SSL/TLS error.
func isSSLError(err error) bool {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return false
	}
	s := strings.ToLower(uerr.Err.Error())
	return strings.Contains(s, "tls") ||
		strings.Contains(s, "x509") ||
		strings.Contains(s, "certificate")
}
