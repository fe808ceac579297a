// Package addr builds and parses OpenSRF bus addresses.
//
// An address identifies a queue on the message bus.  It always
// serializes to "opensrf:<purpose>:<username>:<domain>[:<svc_or_suffix>]".
package addr

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Purpose is the kind of endpoint an Address identifies.
type Purpose string

const (
	PurposeClient  Purpose = "client"
	PurposeService Purpose = "service"
	PurposeRouter  Purpose = "router"
)

const prefix = "opensrf"

// Address is a structured bus identifier. The zero value is not valid;
// build one with For* or Parse.
type Address struct {
	Purpose  Purpose
	Username string
	Domain   string
	Service  string // set for PurposeService
	Suffix   string // random per-connection suffix for PurposeClient
}

// ForClient builds a unique per-connection client address. Every call
// returns a distinct address; the caller owns the resulting queue and
// must purge it on teardown.
func ForClient(username, domain string) Address {
	return Address{
		Purpose:  PurposeClient,
		Username: username,
		Domain:   domain,
		Suffix:   strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
	}
}

// ForService builds the well-known address for a service on a domain.
func ForService(username, domain, service string) Address {
	return Address{
		Purpose:  PurposeService,
		Username: username,
		Domain:   domain,
		Service:  service,
	}
}

// ForRouter builds the address of the router running on a domain.
func ForRouter(username, domain string) Address {
	return Address{
		Purpose:  PurposeRouter,
		Username: username,
		Domain:   domain,
	}
}

// String renders the canonical wire form.
func (a Address) String() string {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteByte(':')
	sb.WriteString(string(a.Purpose))
	sb.WriteByte(':')
	sb.WriteString(a.Username)
	sb.WriteByte(':')
	sb.WriteString(a.Domain)

	switch a.Purpose {
	case PurposeService:
		sb.WriteByte(':')
		sb.WriteString(a.Service)
	case PurposeClient:
		if a.Suffix != "" {
			sb.WriteByte(':')
			sb.WriteString(a.Suffix)
		}
	}

	return sb.String()
}

// Parse decodes a canonical address string, failing on malformed or
// unrecognized-purpose input.
func Parse(s string) (Address, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 4 || parts[0] != prefix {
		return Address{}, fmt.Errorf("addr: malformed address %q", s)
	}

	purpose := Purpose(parts[1])
	a := Address{
		Purpose:  purpose,
		Username: parts[2],
		Domain:   parts[3],
	}

	switch purpose {
	case PurposeClient:
		if len(parts) >= 5 {
			a.Suffix = parts[4]
		}
	case PurposeService:
		if len(parts) < 5 {
			return Address{}, fmt.Errorf("addr: service address missing service name: %q", s)
		}
		a.Service = strings.Join(parts[4:], ":")
	case PurposeRouter:
		// no extra segment
	default:
		return Address{}, fmt.Errorf("addr: unrecognized purpose %q in %q", parts[1], s)
	}

	return a, nil
}

// IsService reports whether this address targets a service endpoint.
func (a Address) IsService() bool { return a.Purpose == PurposeService }

// IsClient reports whether this address targets a client reply queue.
func (a Address) IsClient() bool { return a.Purpose == PurposeClient }

// IsRouter reports whether this address targets a router.
func (a Address) IsRouter() bool { return a.Purpose == PurposeRouter }
