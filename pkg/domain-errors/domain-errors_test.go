package domainerrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// Justification: HTTP status mapping and dedup waiter outcomes both depend
// on codes surviving wrapping. A lost CodeTimeout turns a 504 into a 503,
// and a lost CodeCanceled hides a cancelled leader from its waiters.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorString() {
	s.Run("message wins over code", func() {
		err := New(CodeRateLimited, "contact form limit reached")
		s.Equal("contact form limit reached", err.Error())
	})

	s.Run("bare code is used when message is empty", func() {
		s.Equal("unavailable", (&Error{Code: CodeUnavailable}).Error())
		s.Equal("canceled", (&Error{Code: CodeCanceled}).Error())
	})
}

func (s *DomainErrorsSuite) TestRelayFailuresKeepTheirCode() {
	s.Run("upstream timeout stays a timeout through the service layer", func() {
		upstream := Wrap(context.DeadlineExceeded, CodeTimeout, "upstream request timed out")
		relayed := Wrap(upstream, CodeUnavailable, "contact webhook unreachable")

		s.Equal(CodeTimeout, CodeOf(relayed))
		s.True(HasCode(relayed, CodeTimeout))
		s.False(HasCode(relayed, CodeUnavailable))
		s.Equal("contact webhook unreachable", relayed.Error())
	})

	s.Run("plain transport errors take the supplied code", func() {
		relayed := Wrap(errors.New("dial tcp: connection refused"), CodeUnavailable, "contact webhook unreachable")
		s.Equal(CodeUnavailable, CodeOf(relayed))
	})

	s.Run("root cause stays reachable", func() {
		relayed := Wrap(Wrap(context.Canceled, CodeCanceled, "upstream request canceled"), CodeUnavailable, "relay failed")
		s.ErrorIs(relayed, context.Canceled)
	})

	s.Run("fmt wrapping keeps the code visible", func() {
		err := fmt.Errorf("redis fixed window script: %w", New(CodeUnavailable, "store down"))
		s.Equal(CodeUnavailable, CodeOf(err))
	})
}

func (s *DomainErrorsSuite) TestSentinelsMatchByCode() {
	errCanceled := New(CodeCanceled, "in-flight request canceled")
	errWaitTimeout := New(CodeTimeout, "timed out waiting for in-flight request")

	s.Run("a fresh error with the same code matches", func() {
		s.ErrorIs(New(CodeCanceled, "leader went away"), errCanceled)
	})

	s.Run("different codes do not match", func() {
		s.NotErrorIs(errCanceled, errWaitTimeout)
	})

	s.Run("match found deep in the chain", func() {
		wrapped := fmt.Errorf("wait: %w", Wrap(errWaitTimeout, CodeInternal, "waiter gave up"))
		s.ErrorIs(wrapped, errWaitTimeout)
	})

	s.Run("plain errors never match", func() {
		s.False(errCanceled.(*Error).Is(errors.New("canceled")))
	})
}

func (s *DomainErrorsSuite) TestNew() {
	err := New(CodeValidation, "email must be a valid email")

	var domainErr *Error
	s.Require().ErrorAs(err, &domainErr)
	s.Equal(CodeValidation, domainErr.Code)
	s.Nil(domainErr.Unwrap())
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.False(HasCode(nil, CodeRateLimited))
	s.False(HasCode(errors.New("too many requests"), CodeRateLimited))
	s.True(HasCode(New(CodeRateLimited, "slow down"), CodeRateLimited))
}

func (s *DomainErrorsSuite) TestCodeOf() {
	s.Run("returns code of domain error", func() {
		s.Equal(CodeRateLimited, CodeOf(New(CodeRateLimited, "slow down")))
	})

	s.Run("returns preserved code through wrapping", func() {
		wrapped := Wrap(New(CodeTimeout, "wait timed out"), CodeInternal, "relay failed")
		s.Equal(CodeTimeout, CodeOf(wrapped))
	})

	s.Run("defaults to internal for plain errors", func() {
		s.Equal(CodeInternal, CodeOf(errors.New("boom")))
	})
}
